package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/agentmesh/x402-gateway/internal/a2a"
	"github.com/agentmesh/x402-gateway/internal/catalog"
	"github.com/agentmesh/x402-gateway/internal/executor"
	"github.com/agentmesh/x402-gateway/internal/parse"
	"github.com/agentmesh/x402-gateway/internal/store"
)

// executePaid runs the verify -> execute -> settle path for a paid task.
// Settlement is only recorded after the executor succeeds, so a failed run
// never produces a payment-settled event.
func (e *Engine) executePaid(ctx context.Context, task *a2a.Task, skill catalog.Skill, req parse.Request, pm a2a.PaymentMeta) *a2a.Task {
	payload := pm.Payload
	payer := pm.Payer
	if payer == "" {
		payer = payload.Payer()
	}
	network := ""
	if payload != nil {
		network = payload.Network
	}

	e.state.Events.Append(store.Event{
		Kind:    store.EventPaymentReceived,
		TaskID:  task.ID,
		Skill:   skill.ID,
		Wallet:  payer,
		Network: network,
	})

	required := e.builder.Build(skill)
	if required != nil && network != "" && !required.AcceptsNetwork(network) {
		return e.failPayment(task, skill, payer, network, "unsupported network: "+network)
	}

	e.state.Events.Append(store.Event{
		Kind:    store.EventPaymentVerified,
		TaskID:  task.ID,
		Skill:   skill.ID,
		Wallet:  payer,
		Network: network,
	})
	working, err := e.state.Tasks.Update(task.ID, a2a.TaskStateWorking, nil, map[string]any{
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusVerified),
	})
	if err != nil {
		stored, _ := e.state.Tasks.Get(task.ID)
		return stored
	}
	task = working

	// No store lock is held while the executor runs.
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result, execErr := e.executors.Execute(runCtx, skill.ID, req)

	// The task may have been canceled while the executor ran; a terminal
	// state never regresses, so the update below simply loses.
	if execErr != nil {
		e.log.Warn("paid skill failed", "task", task.ID, "skill", skill.ID, "err", execErr)
		return e.failPayment(task, skill, payer, network, execErr.Error())
	}

	tx, settleErr := e.facilitator.VerifyAndSettle(ctx, payload, required)
	if settleErr != nil {
		e.log.Warn("settlement failed", "task", task.ID, "skill", skill.ID, "err", settleErr)
		return e.failPayment(task, skill, payer, network, settleErr.Error())
	}

	e.state.Events.Append(store.Event{
		Kind:    store.EventPaymentSettled,
		TaskID:  task.ID,
		Skill:   skill.ID,
		Wallet:  payer,
		Network: network,
	})
	// A session entry always has a settled event behind it; a failed run
	// must not grant free reuse.
	if payer != "" {
		e.state.Sessions.Record(payer, skill.ID)
	}

	receipt := a2a.Receipt{
		Success:     true,
		Transaction: tx,
		Network:     network,
		Payer:       payer,
	}
	reply := e.resultMessage(task, skill, result, map[string]any{
		a2a.MetaPaymentStatus:     string(a2a.PaymentStatusCompleted),
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusCompleted),
		a2a.MetaPaymentReceipts:   []a2a.Receipt{receipt},
	})
	done, err := e.state.Tasks.Update(task.ID, a2a.TaskStateCompleted, reply, map[string]any{
		a2a.TaskMetaReceipts:      []a2a.Receipt{receipt},
		a2a.TaskMetaTransactionID: tx,
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusCompleted),
	})
	if err != nil {
		if errors.Is(err, store.ErrTerminalTask) {
			stored, _ := e.state.Tasks.Get(task.ID)
			return stored
		}
		return task
	}
	e.log.Info("paid task completed", "task", task.ID, "skill", skill.ID, "wallet", payer, "tx", tx)
	return done
}

// failPayment marks a paid task failed with an unsuccessful receipt. The
// payment log keeps the received/verified entries; no settlement is recorded.
func (e *Engine) failPayment(task *a2a.Task, skill catalog.Skill, payer, network, reason string) *a2a.Task {
	receipt := a2a.Receipt{
		Success:     false,
		Network:     network,
		Payer:       payer,
		ErrorReason: reason,
	}
	reply := e.agentMessage(task, a2a.TextPart("Skill execution failed: "+reason), map[string]any{
		a2a.MetaPaymentStatus:     string(a2a.PaymentStatusFailed),
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusFailed),
		a2a.MetaPaymentReceipts:   []a2a.Receipt{receipt},
	})
	failed, err := e.state.Tasks.Update(task.ID, a2a.TaskStateFailed, reply, map[string]any{
		a2a.TaskMetaReceipts:      []a2a.Receipt{receipt},
		a2a.TaskMetaPaymentStatus: string(a2a.PaymentStatusFailed),
	})
	if err != nil {
		stored, _ := e.state.Tasks.Get(task.ID)
		if stored != nil {
			return stored
		}
		return task
	}
	return failed
}

// executeFree runs an unpriced (or session-granted) task straight through
// working to a terminal state.
func (e *Engine) executeFree(ctx context.Context, task *a2a.Task, skill catalog.Skill, req parse.Request) *a2a.Task {
	working, err := e.state.Tasks.Update(task.ID, a2a.TaskStateWorking, nil, nil)
	if err != nil {
		stored, _ := e.state.Tasks.Get(task.ID)
		return stored
	}
	task = working

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result, execErr := e.executors.Execute(runCtx, skill.ID, req)
	if execErr != nil {
		e.log.Warn("skill failed", "task", task.ID, "skill", skill.ID, "err", execErr)
		reply := e.agentMessage(task, a2a.TextPart("Skill execution failed: "+execErr.Error()), nil)
		failed, err := e.state.Tasks.Update(task.ID, a2a.TaskStateFailed, reply, nil)
		if err != nil {
			stored, _ := e.state.Tasks.Get(task.ID)
			return stored
		}
		return failed
	}

	reply := e.resultMessage(task, skill, result, nil)
	done, err := e.state.Tasks.Update(task.ID, a2a.TaskStateCompleted, reply, nil)
	if err != nil {
		stored, _ := e.state.Tasks.Get(task.ID)
		return stored
	}
	e.log.Info("task completed", "task", task.ID, "skill", skill.ID)
	return done
}

// resultMessage converts an executor result into the agent reply: a data
// part for structured output, a file part for binary output.
func (e *Engine) resultMessage(task *a2a.Task, skill catalog.Skill, result *executor.Result, metadata map[string]any) *a2a.Message {
	var part a2a.Part
	switch {
	case result == nil:
		part = a2a.TextPart("done")
	case len(result.Body) > 0 && binaryMime(result.Mime):
		part = a2a.FilePart(skill.ID+fileExt(result.Mime), result.Mime, base64.StdEncoding.EncodeToString(result.Body))
	case result.Data != nil:
		part = a2a.DataPart(result.Data)
	case len(result.Body) > 0:
		part = a2a.TextPart(string(result.Body))
	default:
		part = a2a.TextPart("done")
	}
	return e.agentMessage(task, part, metadata)
}

func binaryMime(mime string) bool {
	return mime == "application/pdf" || strings.HasPrefix(mime, "image/")
}

func fileExt(mime string) string {
	switch mime {
	case "application/pdf":
		return ".pdf"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
