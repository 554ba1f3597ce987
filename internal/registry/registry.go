// Package registry tracks the chat requests whose external process is running.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sessionhub/internal/model"
)

var (
	// ErrDuplicateRequest is returned when a request id is already active.
	ErrDuplicateRequest = errors.New("request already active")
	// ErrSessionBusy is returned when a session already has an active request.
	ErrSessionBusy = errors.New("session already has an active request")
)

// ActiveProcess is the registry's view of one running request.
type ActiveProcess struct {
	RequestID string       `json:"request_id"`
	SessionID string       `json:"session_id"`
	Tool      model.AiTool `json:"ai_tool"`
	StartedAt time.Time    `json:"started_at"`
}

type entry struct {
	proc   ActiveProcess
	cancel func()
}

// Registry maps request ids to active processes with a secondary index by
// session id. All methods are safe for concurrent use; cancel functions are
// always invoked outside the lock.
type Registry struct {
	mu        sync.Mutex
	byRequest map[string]*entry
	bySession map[string]string
	now       func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byRequest: make(map[string]*entry),
		bySession: make(map[string]string),
		now:       time.Now,
	}
}

// Register records proc as active. StartedAt is filled in when zero. cancel
// is called at most once, by Abort or AbortAll.
func (r *Registry) Register(proc ActiveProcess, cancel func()) error {
	if proc.RequestID == "" {
		return fmt.Errorf("register: empty request id")
	}
	if cancel == nil {
		cancel = func() {}
	}
	if proc.StartedAt.IsZero() {
		proc.StartedAt = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRequest[proc.RequestID]; ok {
		return fmt.Errorf("register %s: %w", proc.RequestID, ErrDuplicateRequest)
	}
	if proc.SessionID != "" {
		if other, ok := r.bySession[proc.SessionID]; ok {
			return fmt.Errorf("register %s: session %s running %s: %w", proc.RequestID, proc.SessionID, other, ErrSessionBusy)
		}
		r.bySession[proc.SessionID] = proc.RequestID
	}
	r.byRequest[proc.RequestID] = &entry{proc: proc, cancel: cancel}
	return nil
}

// Unregister removes requestID without cancelling it. It reports whether an
// entry was removed; the loser of a race with Abort observes false.
func (r *Registry) Unregister(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(requestID) != nil
}

// Abort removes requestID and invokes its cancel function. It reports
// whether a process was found and signaled.
func (r *Registry) Abort(requestID string) bool {
	r.mu.Lock()
	e := r.removeLocked(requestID)
	r.mu.Unlock()
	if e == nil {
		return false
	}
	e.cancel()
	return true
}

// AbortAll cancels every active request and returns how many were signaled.
func (r *Registry) AbortAll() int {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.byRequest))
	for id := range r.byRequest {
		entries = append(entries, r.removeLocked(id))
	}
	r.mu.Unlock()
	for _, e := range entries {
		e.cancel()
	}
	return len(entries)
}

// Get returns the active process for requestID.
func (r *Registry) Get(requestID string) (ActiveProcess, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byRequest[requestID]
	if !ok {
		return ActiveProcess{}, false
	}
	return e.proc, true
}

// BySession returns the active process running in sessionID.
func (r *Registry) BySession(sessionID string) (ActiveProcess, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySession[sessionID]
	if !ok {
		return ActiveProcess{}, false
	}
	return r.byRequest[id].proc, true
}

// List returns a snapshot of active processes ordered by start time.
func (r *Registry) List() []ActiveProcess {
	r.mu.Lock()
	out := make([]ActiveProcess, 0, len(r.byRequest))
	for _, e := range r.byRequest {
		out = append(out, e.proc)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of active requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byRequest)
}

func (r *Registry) removeLocked(requestID string) *entry {
	e, ok := r.byRequest[requestID]
	if !ok {
		return nil
	}
	delete(r.byRequest, requestID)
	if e.proc.SessionID != "" && r.bySession[e.proc.SessionID] == requestID {
		delete(r.bySession, e.proc.SessionID)
	}
	return e
}
