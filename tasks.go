package glaucoscan

import (
	"context"
	"sync"
)

type taskKind string

const (
	taskRead  taskKind = "read"
	taskTimer taskKind = "timer"
)

type pendingTask struct {
	gen    uint64
	kind   taskKind
	cancel context.CancelFunc
}

// taskTable tracks the single background task a session may have in flight.
// Tasks are keyed by the generation they were started for.
type taskTable struct {
	mu    sync.Mutex
	tasks map[string]*pendingTask
}

func newTaskTable() *taskTable {
	return &taskTable{tasks: make(map[string]*pendingTask)}
}

// start registers a task, cancelling whatever the session had pending for the
// same or an older generation. A task already pending for a newer generation
// wins: the returned context is then cancelled from the start.
func (t *taskTable) start(parent context.Context, sessionID string, gen uint64, kind taskKind) context.Context {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.tasks[sessionID]; ok {
		if prev.gen > gen {
			cancel()
			return ctx
		}
		prev.cancel()
	}
	t.tasks[sessionID] = &pendingTask{gen: gen, kind: kind, cancel: cancel}
	return ctx
}

// finish releases a task that ran to completion. A task that was replaced
// meanwhile is left alone.
func (t *taskTable) finish(sessionID string, gen uint64, kind taskKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.tasks[sessionID]; ok && cur.gen == gen && cur.kind == kind {
		cur.cancel()
		delete(t.tasks, sessionID)
	}
}

// cancel aborts the session's pending task, if any.
func (t *taskTable) cancel(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.tasks[sessionID]
	if !ok {
		return false
	}
	cur.cancel()
	delete(t.tasks, sessionID)
	return true
}

// cancelBefore aborts the pending task if it was started for a generation
// older than gen.
func (t *taskTable) cancelBefore(sessionID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.tasks[sessionID]
	if !ok || cur.gen >= gen {
		return false
	}
	cur.cancel()
	delete(t.tasks, sessionID)
	return true
}

// cancelGeneration aborts the pending task only if it belongs to gen.
func (t *taskTable) cancelGeneration(sessionID string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.tasks[sessionID]; ok && cur.gen == gen {
		cur.cancel()
		delete(t.tasks, sessionID)
	}
}

func (t *taskTable) has(sessionID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.tasks[sessionID]
	return ok && cur.gen == gen
}

func (t *taskTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}
