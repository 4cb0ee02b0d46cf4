package channel

import (
	"context"
	"sync"

	"github.com/aardvark-ui/bridge/domain/errors"
)

// Task is a unit of work executed on the owner goroutine.
type Task func(ctx context.Context)

// Dispatcher is an unbounded FIFO of tasks drained by a single owner goroutine.
//
// Post may be called from any goroutine and never blocks. Tasks run in post
// order, one at a time, only from Drain or Run. Nothing is dropped while the
// dispatcher is open; Close discards what is still queued.
type Dispatcher struct {
	signal chan struct{}
	tasks  []Task
	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		tasks:  make([]Task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Post appends a task. Returns errors.ErrDispatcherClosed after Close.
func (d *Dispatcher) Post(t Task) error {
	if t == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.ErrDispatcherClosed
	}

	d.tasks = append(d.tasks, t)

	// buffer of 1 coalesces signals
	select {
	case d.signal <- struct{}{}:
	default:
	}

	return nil
}

func (d *Dispatcher) tryDequeue() (Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.tasks) == 0 {
		return nil, false
	}

	t := d.tasks[0]
	d.tasks[0] = nil
	if len(d.tasks) == 1 {
		d.tasks = d.tasks[:0]
	} else {
		d.tasks = d.tasks[1:]
	}
	return t, true
}

// Drain runs queued tasks on the calling goroutine and returns how many ran.
// At most limit tasks run; limit <= 0 runs every task queued at the time of the
// call. Tasks posted by the running tasks wait for the next Drain.
func (d *Dispatcher) Drain(ctx context.Context, limit int) int {
	n := d.Len()
	if limit > 0 && limit < n {
		n = limit
	}

	ran := 0
	for ran < n {
		t, ok := d.tryDequeue()
		if !ok {
			break
		}
		t(ctx)
		ran++
	}
	return ran
}

// Run executes tasks as they arrive until ctx is done or the dispatcher is closed.
// Use Run when a dedicated goroutine owns the channels instead of a frame loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		for {
			t, ok := d.tryDequeue()
			if !ok {
				break
			}
			t(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-d.signal:
			if !ok {
				return nil
			}
		}
	}
}

// Len returns the number of queued tasks.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// Closed reports whether Close has been called.
func (d *Dispatcher) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close stops accepting tasks, wakes Run, and returns the number of queued
// tasks that were discarded.
func (d *Dispatcher) Close() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0
	}

	d.closed = true
	discarded := len(d.tasks)
	d.tasks = nil
	close(d.signal)
	return discarded
}
