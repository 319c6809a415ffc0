package store

import (
	"errors"
	"sync"
	"time"

	"github.com/agentmesh/x402-gateway/internal/a2a"
)

var (
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTerminalTask is returned when an update would regress a task out
	// of a terminal state.
	ErrTerminalTask = errors.New("task is in a terminal state")
	// ErrDuplicateTask is returned when a task id is created twice.
	ErrDuplicateTask = errors.New("task id already exists")
	// ErrStateConflict is returned by Claim when the task is no longer in
	// the expected state.
	ErrStateConflict = errors.New("task state conflict")
)

// Tasks maps task ids to task records and carries the monotonic total-task
// counter. Stored tasks are owned by the store; accessors return copies.
type Tasks struct {
	mu    sync.RWMutex
	m     map[string]*a2a.Task
	total uint64
}

// NewTasks returns an empty task store.
func NewTasks() *Tasks {
	return &Tasks{m: make(map[string]*a2a.Task)}
}

// Create stores a new task in the given state and bumps the total counter.
func (t *Tasks) Create(id, contextID string, state a2a.TaskState, msg *a2a.Message) (*a2a.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.m[id]; exists {
		return nil, ErrDuplicateTask
	}
	task := &a2a.Task{
		ID:        id,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: state, Timestamp: time.Now().UTC()},
		History:   []a2a.Message{},
		Artifacts: []any{},
		Metadata:  map[string]any{},
	}
	if msg != nil {
		task.History = append(task.History, *msg)
	}
	t.m[id] = task
	t.total++
	return copyTask(task), nil
}

// Get returns a copy of the task.
func (t *Tasks) Get(id string) (*a2a.Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.m[id]
	if !ok {
		return nil, false
	}
	return copyTask(task), true
}

// Update transitions the task, appends the message to its history and
// merges the metadata patch. Transitions out of a terminal state are
// refused with ErrTerminalTask, leaving the task unchanged.
func (t *Tasks) Update(id string, state a2a.TaskState, msg *a2a.Message, metaPatch map[string]any) (*a2a.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.m[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status.State.Terminal() && state != task.Status.State {
		return nil, ErrTerminalTask
	}
	t.apply(task, state, msg, metaPatch)
	return copyTask(task), nil
}

// Claim atomically transitions the task from an expected state. It is how
// concurrent correlated resubmissions are serialised: only one caller wins
// the input-required to working transition, the rest get ErrStateConflict
// and observe the task already past input-required.
func (t *Tasks) Claim(id string, from, to a2a.TaskState, msg *a2a.Message, metaPatch map[string]any) (*a2a.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.m[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status.State != from {
		return nil, ErrStateConflict
	}
	t.apply(task, to, msg, metaPatch)
	return copyTask(task), nil
}

func (t *Tasks) apply(task *a2a.Task, state a2a.TaskState, msg *a2a.Message, metaPatch map[string]any) {
	task.Status = a2a.TaskStatus{State: state, Timestamp: time.Now().UTC(), Message: msg}
	if msg != nil {
		task.History = append(task.History, *msg)
	}
	for k, v := range metaPatch {
		task.Metadata[k] = v
	}
}

// Total returns the monotonic count of tasks created over the process (and
// snapshot-restored) lifetime.
func (t *Tasks) Total() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// RestoreTotal seeds the counter from a snapshot. The counter never
// decreases: restoring a smaller value is a no-op.
func (t *Tasks) RestoreTotal(total uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if total > t.total {
		t.total = total
	}
}

// CountByState aggregates live tasks for the stats endpoint.
func (t *Tasks) CountByState() map[a2a.TaskState]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[a2a.TaskState]int)
	for _, task := range t.m {
		out[task.Status.State]++
	}
	return out
}

// All returns copies of every live task, in no particular order.
func (t *Tasks) All() []*a2a.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*a2a.Task, 0, len(t.m))
	for _, task := range t.m {
		out = append(out, copyTask(task))
	}
	return out
}

// Len returns the number of live tasks.
func (t *Tasks) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

func copyTask(task *a2a.Task) *a2a.Task {
	cp := *task
	cp.History = append([]a2a.Message(nil), task.History...)
	cp.Artifacts = append([]any(nil), task.Artifacts...)
	cp.Metadata = make(map[string]any, len(task.Metadata))
	for k, v := range task.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
