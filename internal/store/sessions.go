package store

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// SessionSnapshot is the serialised form of one wallet session.
type SessionSnapshot struct {
	Skills      []string  `json:"skills"`
	LastPayment time.Time `json:"lastPayment"`
}

type session struct {
	skills        map[string]bool
	lastPaymentAt time.Time
}

// Sessions maps lowercased payer wallets to the set of skills they have
// paid for. A hit entitles the wallet to free reuse of that skill.
type Sessions struct {
	mu sync.RWMutex
	m  map[string]*session
}

// NewSessions returns an empty session store.
func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*session)}
}

func normalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// Record upserts the wallet's entry with the skill and stamps the last
// payment time. Empty wallets are ignored.
func (s *Sessions) Record(wallet, skill string) {
	w := normalizeWallet(wallet)
	if w == "" || skill == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.m[w]
	if !ok {
		entry = &session{skills: make(map[string]bool)}
		s.m[w] = entry
	}
	entry.skills[skill] = true
	entry.lastPaymentAt = time.Now().UTC()
}

// Has reports whether the wallet previously paid for the skill. Empty
// wallets never match.
func (s *Sessions) Has(wallet, skill string) bool {
	w := normalizeWallet(wallet)
	if w == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.m[w]
	return ok && entry.skills[skill]
}

// Len returns the number of wallet sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Snapshot exports the store for persistence. Skill lists are sorted so the
// snapshot is deterministic.
func (s *Sessions) Snapshot() map[string]SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SessionSnapshot, len(s.m))
	for wallet, entry := range s.m {
		skills := make([]string, 0, len(entry.skills))
		for skill := range entry.skills {
			skills = append(skills, skill)
		}
		sort.Strings(skills)
		out[wallet] = SessionSnapshot{Skills: skills, LastPayment: entry.lastPaymentAt}
	}
	return out
}

// Restore replaces the store contents from a snapshot.
func (s *Sessions) Restore(snap map[string]SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]*session, len(snap))
	for wallet, entry := range snap {
		w := normalizeWallet(wallet)
		if w == "" {
			continue
		}
		skills := make(map[string]bool, len(entry.Skills))
		for _, skill := range entry.Skills {
			skills[skill] = true
		}
		s.m[w] = &session{skills: skills, lastPaymentAt: entry.LastPayment}
	}
}
