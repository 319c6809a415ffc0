// Package a2a defines the wire types shared by the JSON-RPC and REST
// surfaces of the gateway: messages, tasks, payment metadata and the
// JSON-RPC 2.0 envelope.
package a2a

import "time"

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCanceled      TaskState = "canceled"
)

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// PaymentStatus is the x402 payment substate of a task.
type PaymentStatus string

const (
	PaymentStatusRequired  PaymentStatus = "payment-required"
	PaymentStatusSubmitted PaymentStatus = "payment-submitted"
	PaymentStatusVerified  PaymentStatus = "payment-verified"
	PaymentStatusCompleted PaymentStatus = "payment-completed"
	PaymentStatusFailed    PaymentStatus = "payment-failed"
	PaymentStatusRejected  PaymentStatus = "payment-rejected"
)

// AllPaymentStatuses lists the six substates in lifecycle order.
var AllPaymentStatuses = []PaymentStatus{
	PaymentStatusRequired,
	PaymentStatusSubmitted,
	PaymentStatusVerified,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusRejected,
}

// Payment extension URIs declared in the agent card and echoed during
// extension activation.
const (
	ExtensionURIV01  = "https://github.com/google-a2a/a2a-x402/v0.1"
	ExtensionURIV02  = "https://github.com/google-a2a/a2a-x402/v0.2"
	ExtensionURISIWX = "https://github.com/google-a2a/a2a-x402/ext/siwx/v0.1"
)

// Message is a single turn in a conversation with the gateway.
type Message struct {
	MessageID string         `json:"messageId"`
	Role      string         `json:"role"`
	Kind      string         `json:"kind"`
	Parts     []Part         `json:"parts"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Text returns the first text part, or "" when the message has none.
func (m *Message) Text() string {
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			return p.Text
		}
	}
	return ""
}

// TaskStatus is the current state of a task plus the agent message that
// accompanied the transition into it.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Message   *Message  `json:"message,omitempty"`
}

// Task is the unit of correlated work. History accumulates every message
// received for the task; Metadata is an open bag that round-trips unknown
// keys and carries the cached payment requirements, receipts and the
// settlement transaction id.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history"`
	Artifacts []any          `json:"artifacts"`
	Metadata  map[string]any `json:"metadata"`
}

// PaymentPayload is the client-supplied signed payment. The gateway treats
// it as opaque apart from the network, payer and scheme fields; real
// verification is the facilitator's job.
type PaymentPayload struct {
	X402Version int            `json:"x402Version,omitempty"`
	Scheme      string         `json:"scheme,omitempty"`
	Network     string         `json:"network"`
	Signature   string         `json:"signature,omitempty"`
	From        string         `json:"from,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Payer returns the payer wallet, looking through the nested payload
// shapes clients send (top-level from, payload.from, payload.authorization.from).
func (p *PaymentPayload) Payer() string {
	if p == nil {
		return ""
	}
	if p.From != "" {
		return p.From
	}
	if from, ok := p.Payload["from"].(string); ok && from != "" {
		return from
	}
	if auth, ok := p.Payload["authorization"].(map[string]any); ok {
		if from, ok := auth["from"].(string); ok {
			return from
		}
	}
	return ""
}

// Receipt records the outcome of a settlement, attached to completed or
// failed paid tasks.
type Receipt struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}
