// Package engine drives a task through the payment lifecycle: requirement
// emission, correlated payment submission, verification, settlement,
// rejection and execution. It owns no state of its own; everything lives in
// the stores threaded in from main.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/executor"
	"github.com/agentmesh/x402-gateway/internal/facilitator"
	"github.com/agentmesh/x402-gateway/internal/parse"
	"github.com/agentmesh/x402-gateway/internal/store"
)

// Engine is the payment state machine plus its collaborators.
type Engine struct {
	state       *store.State
	builder     *catalog.Builder
	executors   executor.Registry
	facilitator facilitator.Facilitator
	timeout     time.Duration
	log         *slog.Logger
}

// New wires an engine.
func New(state *store.State, builder *catalog.Builder, executors executor.Registry, fac facilitator.Facilitator, timeout time.Duration, log *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		state:       state,
		builder:     builder,
		executors:   executors,
		facilitator: fac,
		timeout:     timeout,
		log:         log,
	}
}

// State exposes the stores for the discovery and stats handlers.
func (e *Engine) State() *store.State { return e.state }

// Builder exposes the requirements builder.
func (e *Engine) Builder() *catalog.Builder { return e.builder }

// Handle processes one incoming message and returns the resulting task.
// extraMeta is request-level metadata layered over the message metadata
// (the REST surface and JSON-RPC params.metadata both use it).
func (e *Engine) Handle(ctx context.Context, msg *a2a.Message, extraMeta map[string]any) (*a2a.Task, *a2a.Error) {
	text := msg.Text()
	if text == "" {
		return nil, a2a.NewError(a2a.ErrCodeInvalidParams, "message has no text part")
	}
	pm := a2a.PaymentMetaFrom(msg.Metadata, extraMeta)

	// Correlated follow-up for an existing task.
	if msg.TaskID != "" {
		if task, ok := e.state.Tasks.Get(msg.TaskID); ok {
			if pm.Status == a2a.PaymentStatusRejected {
				return e.rejectPayment(task, msg), nil
			}
			if pm.Status == a2a.PaymentStatusSubmitted || pm.HasPayload() {
				return e.resubmit(ctx, task, msg, pm), nil
			}
		}
	}

	// New interaction.
	req := parse.Parse(text)
	skill, ok := catalog.SkillByID(req.SkillID)
	if !ok {
		return nil, a2a.NewError(a2a.ErrCodeInvalidParams, "unknown skill: "+req.SkillID)
	}

	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	task, err := e.state.Tasks.Create(uuid.NewString(), contextID, a2a.TaskStateSubmitted, msg)
	if err != nil {
		return nil, a2a.NewError(a2a.ErrCodeInvalidParams, err.Error())
	}
	task, _ = e.state.Tasks.Update(task.ID, a2a.TaskStateSubmitted, nil, map[string]any{
		a2a.TaskMetaSkill:   skill.ID,
		a2a.TaskMetaRequest: req,
	})

	// Direct payment attached to the first message.
	if pm.HasPayload() {
		return e.executePaid(ctx, task, skill, req, pm), nil
	}

	// Prior wallet session grants free reuse of a paid skill.
	if skill.RequiresPayment() && pm.SessionWallet != "" && e.state.Sessions.Has(pm.SessionWallet, skill.ID) {
		e.state.Events.Append(store.Event{
			Kind:   store.EventSIWXAccess,
			TaskID: task.ID,
			Skill:  skill.ID,
			Wallet: pm.SessionWallet,
		})
		e.log.Info("session grants free access", "task", task.ID, "skill", skill.ID, "wallet", pm.SessionWallet)
		return e.executeFree(ctx, task, skill, req), nil
	}

	if skill.RequiresPayment() {
		return e.requirePayment(task, skill), nil
	}

	return e.executeFree(ctx, task, skill, req), nil
}

// HandleRest runs one skill for the REST surface. The skill is named by the
// route rather than parsed from text, but the task, event and session
// bookkeeping is identical to the JSON-RPC path.
func (e *Engine) HandleRest(ctx context.Context, skillID string, req parse.Request, pm a2a.PaymentMeta) (*a2a.Task, *a2a.Error) {
	skill, ok := catalog.SkillByID(skillID)
	if !ok {
		return nil, a2a.NewError(a2a.ErrCodeInvalidParams, "unknown skill: "+skillID)
	}
	seed := &a2a.Message{
		MessageID: uuid.NewString(),
		Role:      "user",
		Kind:      "message",
		Parts:     []a2a.Part{a2a.TextPart(req.Content)},
	}
	task, err := e.state.Tasks.Create(uuid.NewString(), uuid.NewString(), a2a.TaskStateSubmitted, seed)
	if err != nil {
		return nil, a2a.NewError(a2a.ErrCodeInvalidParams, err.Error())
	}
	task, _ = e.state.Tasks.Update(task.ID, a2a.TaskStateSubmitted, nil, map[string]any{
		a2a.TaskMetaSkill:   skill.ID,
		a2a.TaskMetaRequest: req,
	})
	if skill.RequiresPayment() {
		return e.executePaid(ctx, task, skill, req, pm), nil
	}
	return e.executeFree(ctx, task, skill, req), nil
}

// Cancel forces a task to canceled. Cancelling an already-terminal task is
// an idempotent success that returns the stored task.
func (e *Engine) Cancel(id string) (*a2a.Task, *a2a.Error) {
	task, err := e.state.Tasks.Update(id, a2a.TaskStateCanceled, nil, nil)
	if err != nil {
		if errors.Is(err, store.ErrTerminalTask) {
			stored, _ := e.state.Tasks.Get(id)
			return stored, nil
		}
		return nil, a2a.NewError(a2a.ErrCodeTaskNotFound, "task not found: "+id)
	}
	e.log.Info("task canceled", "task", id)
	return task, nil
}

// Get returns the stored task by id.
func (e *Engine) Get(id string) (*a2a.Task, *a2a.Error) {
	task, ok := e.state.Tasks.Get(id)
	if !ok {
		return nil, a2a.NewError(a2a.ErrCodeTaskNotFound, "task not found: "+id)
	}
	return task, nil
}

// requirePayment parks the task in input-required with the canonical
// requirements attached, and caches the parsed request for the correlated
// resubmission.
func (e *Engine) requirePayment(task *a2a.Task, skill catalog.Skill) *a2a.Task {
	required := e.builder.Build(skill)
	requiredMeta := map[string]any{
		"version": 1,
		"accepts": required.Accepts,
	}
	reply := e.agentMessage(task, a2a.TextPart("Payment required for "+skill.Name+"."), map[string]any{
		a2a.MetaPaymentStatus:         string(a2a.PaymentStatusRequired),
		a2a.TaskMetaPaymentStatus:     string(a2a.PaymentStatusRequired),
		a2a.MetaPaymentRequired:       requiredMeta,
		a2a.MetaPaymentRequiredCompat: requiredMeta,
	})
	updated, err := e.state.Tasks.Update(task.ID, a2a.TaskStateInputRequired, reply, map[string]any{
		a2a.TaskMetaAccepts:       required.Accepts,
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusRequired),
	})
	if err != nil {
		return task
	}
	e.state.Events.Append(store.Event{
		Kind:   store.EventPaymentRequired,
		TaskID: task.ID,
		Skill:  skill.ID,
	})
	e.log.Info("payment required", "task", task.ID, "skill", skill.ID)
	return updated
}

// rejectPayment transitions an awaiting task to canceled.
func (e *Engine) rejectPayment(task *a2a.Task, msg *a2a.Message) *a2a.Task {
	skill, _ := task.Metadata[a2a.TaskMetaSkill].(string)
	reply := e.agentMessage(task, a2a.TextPart("Payment declined; task canceled."), map[string]any{
		a2a.MetaPaymentStatus:     string(a2a.PaymentStatusRejected),
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusRejected),
	})
	updated, err := e.state.Tasks.Update(task.ID, a2a.TaskStateCanceled, reply, map[string]any{
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusRejected),
	})
	if err != nil {
		return task
	}
	e.state.Events.Append(store.Event{
		Kind:   store.EventPaymentRejected,
		TaskID: task.ID,
		Skill:  skill,
		Wallet: a2a.PaymentMetaFrom(msg.Metadata).Payer,
	})
	e.log.Info("payment rejected", "task", task.ID, "skill", skill)
	return updated
}

// resubmit is the correlated second message of the Standalone Flow: the
// cached parsed request drives executor selection and all events reference
// the original task id.
func (e *Engine) resubmit(ctx context.Context, task *a2a.Task, msg *a2a.Message, pm a2a.PaymentMeta) *a2a.Task {
	skillID, _ := task.Metadata[a2a.TaskMetaSkill].(string)
	skill, ok := catalog.SkillByID(skillID)
	if !ok {
		return task
	}
	req, ok := task.Metadata[a2a.TaskMetaRequest].(parse.Request)
	if !ok {
		req = parse.Parse(msg.Text())
	}

	// Only one concurrent resubmission may claim the task; the rest
	// observe it already past input-required.
	claimed, err := e.state.Tasks.Claim(task.ID, a2a.TaskStateInputRequired, a2a.TaskStateSubmitted, msg, nil)
	if err != nil {
		stored, _ := e.state.Tasks.Get(task.ID)
		if stored != nil {
			return stored
		}
		return task
	}
	return e.executePaid(ctx, claimed, skill, req, pm)
}

// agentMessage builds an agent-role reply bound to the task.
func (e *Engine) agentMessage(task *a2a.Task, part a2a.Part, metadata map[string]any) *a2a.Message {
	return &a2a.Message{
		MessageID: uuid.NewString(),
		Role:      "agent",
		Kind:      "message",
		Parts:     []a2a.Part{part},
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Metadata:  metadata,
	}
}
