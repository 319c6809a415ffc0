package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// State bundles the stores the snapshot covers. Live tasks are deliberately
// not persisted: only sessions, the event log and the total counter survive
// a restart.
type State struct {
	Events    *EventLog
	Sessions  *Sessions
	Tasks     *Tasks
	StartedAt time.Time
}

// NewState constructs fresh stores with the epoch set to now.
func NewState() *State {
	return &State{
		Events:    NewEventLog(),
		Sessions:  NewSessions(),
		Tasks:     NewTasks(),
		StartedAt: time.Now().UTC(),
	}
}

type snapshotFile struct {
	PaymentLog   []Event                    `json:"paymentLog"`
	SIWXSessions map[string]SessionSnapshot `json:"siwxSessions"`
	TotalTasks   uint64                     `json:"totalTasks"`
	StartedAt    time.Time                  `json:"startedAt"`
	SavedAt      time.Time                  `json:"savedAt"`
}

// Persister serialises the durable state to a single JSON file on a timer
// and on graceful shutdown, and restores it on startup.
type Persister struct {
	Path string
	Log  *slog.Logger
}

// Load restores state from the snapshot file. A missing or empty file
// starts fresh; malformed JSON starts fresh with a warning. Load never
// fails the process.
func (p *Persister) Load(st *State) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.Log.Warn("snapshot unreadable, starting fresh", "path", p.Path, "error", err)
		}
		return
	}
	if len(data) == 0 {
		return
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		p.Log.Warn("snapshot corrupt, starting fresh", "path", p.Path, "error", err)
		return
	}
	st.Events.Restore(snap.PaymentLog)
	st.Sessions.Restore(snap.SIWXSessions)
	st.Tasks.RestoreTotal(snap.TotalTasks)
	if !snap.StartedAt.IsZero() {
		st.StartedAt = snap.StartedAt
	}
	p.Log.Info("snapshot restored",
		"events", st.Events.Len(),
		"sessions", st.Sessions.Len(),
		"totalTasks", st.Tasks.Total())
}

// Save writes the snapshot atomically (temp file then rename). Failures are
// logged by the caller; in-memory state stays authoritative either way.
func (p *Persister) Save(st *State) error {
	snap := snapshotFile{
		PaymentLog:   st.Events.All(),
		SIWXSessions: st.Sessions.Snapshot(),
		TotalTasks:   st.Tasks.Total(),
		StartedAt:    st.StartedAt,
		SavedAt:      time.Now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := p.Path + ".tmp"
	if dir := filepath.Dir(p.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

// Run saves on every tick until done is closed, then saves one final time.
func (p *Persister) Run(done <-chan struct{}, interval time.Duration, st *State) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.Save(st); err != nil {
				p.Log.Warn("snapshot save failed", "path", p.Path, "error", err)
			}
		case <-done:
			if err := p.Save(st); err != nil {
				p.Log.Warn("final snapshot save failed", "path", p.Path, "error", err)
			}
			return
		}
	}
}
