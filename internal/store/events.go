// Package store holds the gateway's process-wide mutable state: the wallet
// session store, the task store, the append-only payment event log and the
// snapshot persister that carries sessions and the log across restarts.
package store

import (
	"sync"
	"time"
)

// EventKind enumerates the payment event taxonomy.
type EventKind string

const (
	EventPaymentRequired EventKind = "payment-required"
	EventPaymentReceived EventKind = "payment-received"
	EventPaymentVerified EventKind = "payment-verified"
	EventPaymentSettled  EventKind = "payment-settled"
	EventPaymentRejected EventKind = "payment-rejected"
	EventSIWXAccess      EventKind = "siwx-access"
)

// Event is one entry of the durable payment log.
type Event struct {
	Kind    EventKind `json:"kind"`
	TaskID  string    `json:"taskId,omitempty"`
	Skill   string    `json:"skill,omitempty"`
	Wallet  string    `json:"wallet,omitempty"`
	Network string    `json:"network,omitempty"`
	At      time.Time `json:"at"`
}

// EventLog is an append-only, arrival-ordered sequence of payment events.
type EventLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewEventLog returns an empty log.
func NewEventLog() *EventLog { return &EventLog{} }

// Append adds an event, stamping the wall clock when the caller left At zero.
func (l *EventLog) Append(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// All returns a copy of the log in arrival order.
func (l *EventLog) All() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// CountByKind aggregates the log for the stats endpoint.
func (l *EventLog) CountByKind() map[EventKind]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[EventKind]int)
	for _, e := range l.events {
		out[e.Kind]++
	}
	return out
}

// HasSettlement reports whether a payment-settled event exists for the
// wallet (case-insensitive) and skill pair.
func (l *EventLog) HasSettlement(wallet, skill string) bool {
	w := normalizeWallet(wallet)
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.events {
		if e.Kind == EventPaymentSettled && normalizeWallet(e.Wallet) == w && e.Skill == skill {
			return true
		}
	}
	return false
}

// Restore replaces the log contents, used by the snapshot loader.
func (l *EventLog) Restore(events []Event) {
	l.mu.Lock()
	l.events = append([]Event(nil), events...)
	l.mu.Unlock()
}
