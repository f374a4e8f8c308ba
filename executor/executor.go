// Package executor models the task queue a handshake is affine to
// (spec.md §5): all of its callbacks run on one queue, in order, and the
// authenticator must never be touched from another goroutine.
//
// Grounded on katzenpost-katzenpost's wire/server.Server, which runs one
// goroutine per connection off a shared accept loop; narrowed here from
// "one goroutine serves many connections" to "one single-worker queue
// serializes one handshake's callbacks", since a handshake's ordering
// requirement is stricter than a connection server's.
package executor

import "sync"

// Executor serializes callbacks. Go must preserve submission order: a
// callback enqueued after another must not start before the earlier one
// returns.
type Executor interface {
	// Go enqueues fn to run on the executor's worker. It does not wait for
	// fn to run; an implementation with a bounded queue (SerialExecutor)
	// blocks while that queue is full.
	Go(fn func())

	// Close stops accepting new work and waits for the worker to drain.
	Close()
}

// SerialExecutor is a single-worker task queue: exactly the concurrency
// model spec.md §5 requires for a handshake.
type SerialExecutor struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewSerialExecutor starts a worker goroutine and returns an Executor
// backed by it. The queue depth is bounded; spec.md's own model never has
// more than one outstanding callback (on_bytes/on_write_done alternate
// with the channel), so a small buffer is enough to avoid the submitter
// blocking on the common case.
func NewSerialExecutor() *SerialExecutor {
	e := &SerialExecutor{
		tasks: make(chan func(), 4),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *SerialExecutor) run() {
	defer close(e.done)
	for fn := range e.tasks {
		fn()
	}
}

// Go implements Executor.
func (e *SerialExecutor) Go(fn func()) {
	e.tasks <- fn
}

// Close implements Executor.
func (e *SerialExecutor) Close() {
	e.once.Do(func() {
		close(e.tasks)
	})
	<-e.done
}

var _ Executor = (*SerialExecutor)(nil)
