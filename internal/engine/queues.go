package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// Task is the payload of a queued microtask or macrotask callback. The set
// of variants is closed: LabelTask, ChainedTask and CallbackTask.
type Task interface {
	Describe() string
	isTask()
}

// LabelTask is a callback whose only effect is logging its label.
type LabelTask struct {
	Label string
}

// ChainedTask logs and then schedules Next as a new microtask, the way a
// promise reaction that itself calls then() behaves.
type ChainedTask struct {
	Log  string
	Next Task
}

// CallbackTask is an opaque callback that is run but produces no output.
type CallbackTask struct {
	Callback string
}

func (LabelTask) isTask()    {}
func (ChainedTask) isTask()  {}
func (CallbackTask) isTask() {}

func (t LabelTask) Describe() string { return t.Label }

func (t ChainedTask) Describe() string {
	if t.Next == nil {
		return t.Log
	}
	return fmt.Sprintf("%s (then %s)", t.Log, t.Next.Describe())
}

func (t CallbackTask) Describe() string { return t.Callback }

// Macrotask is a queued task callback. ID links it to its pending operation.
type Macrotask struct {
	ID       string
	Type     string
	Callback Task
}

// PendingOperation is an asynchronous registration that has not fired yet.
type PendingOperation struct {
	ID       string
	Type     string
	Callback Task
	Delay    int
}

// TaskQueues holds the microtask queue, the macrotask queue and the table
// of pending operations.
type TaskQueues struct {
	microtasks []Task
	macrotasks []Macrotask
	pending    map[string]PendingOperation
	order      []string

	namespace uuid.UUID
	nextID    int
}

func newTaskQueues(namespace uuid.UUID) *TaskQueues {
	return &TaskQueues{
		pending:   make(map[string]PendingOperation),
		namespace: namespace,
	}
}

// EnqueueMicrotask appends t to the microtask queue.
func (q *TaskQueues) EnqueueMicrotask(t Task) {
	q.microtasks = append(q.microtasks, t)
}

// DequeueMicrotask removes the oldest microtask.
func (q *TaskQueues) DequeueMicrotask() (Task, bool) {
	if len(q.microtasks) == 0 {
		return nil, false
	}
	t := q.microtasks[0]
	q.microtasks[0] = nil
	q.microtasks = q.microtasks[1:]
	return t, true
}

// Register records a pending operation and enqueues the macrotask that will
// deliver its callback. The returned id is stable across resets because it
// is derived from the session namespace and a per-session counter.
func (q *TaskQueues) Register(typ string, callback Task, delay int) PendingOperation {
	q.nextID++
	id := uuid.NewSHA1(q.namespace, []byte(fmt.Sprintf("%s:%d", typ, q.nextID))).String()
	op := PendingOperation{ID: id, Type: typ, Callback: callback, Delay: delay}
	q.pending[id] = op
	q.order = append(q.order, id)
	q.macrotasks = append(q.macrotasks, Macrotask{ID: id, Type: typ, Callback: callback})
	return op
}

// DequeueMacrotask removes the oldest macrotask together with its pending
// operation entry.
func (q *TaskQueues) DequeueMacrotask() (Macrotask, bool) {
	if len(q.macrotasks) == 0 {
		return Macrotask{}, false
	}
	m := q.macrotasks[0]
	q.macrotasks = q.macrotasks[1:]
	q.forget(m.ID)
	return m, true
}

// Cancel removes a pending operation and its macrotask.
func (q *TaskQueues) Cancel(id string) (PendingOperation, bool) {
	op, ok := q.pending[id]
	if !ok {
		return PendingOperation{}, false
	}
	q.forget(id)
	for i, m := range q.macrotasks {
		if m.ID == id {
			q.macrotasks = append(q.macrotasks[:i:i], q.macrotasks[i+1:]...)
			break
		}
	}
	return op, true
}

// FindPending returns the oldest pending operation whose callback is
// described by label.
func (q *TaskQueues) FindPending(label string) (PendingOperation, bool) {
	for _, id := range q.order {
		op := q.pending[id]
		if op.Callback != nil && op.Callback.Describe() == label {
			return op, true
		}
	}
	return PendingOperation{}, false
}

func (q *TaskQueues) forget(id string) {
	delete(q.pending, id)
	for i, o := range q.order {
		if o == id {
			q.order = append(q.order[:i:i], q.order[i+1:]...)
			break
		}
	}
}

// Microtasks returns the number of queued microtasks.
func (q *TaskQueues) Microtasks() int { return len(q.microtasks) }

// Macrotasks returns the number of queued macrotasks.
func (q *TaskQueues) Macrotasks() int { return len(q.macrotasks) }

func (q *TaskQueues) reset() {
	q.microtasks = nil
	q.macrotasks = nil
	q.pending = make(map[string]PendingOperation)
	q.order = nil
	q.nextID = 0
}
