package bridge

import (
	"context"
	"errors"
	"sync"
)

var ErrLoopClosed = errors.New("loop closed")

// Loop runs posted tasks one at a time on a single goroutine. Routing every
// Receive and Send of a Connection through one Loop gives the sequential
// execution the Connection relies on.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func NewLoop(buffer int) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post queues fn. It blocks while the buffer is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Call runs fn on the loop and waits for its result. It must not be called
// from a task already running on the same loop.
func (l *Loop) Call(fn func() error) error {
	result := make(chan error, 1)
	if err := l.Post(func() { result <- fn() }); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		// the task may still have run right before close
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	}
}

// Run executes tasks until ctx is cancelled or Close is called. Tasks still
// queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.tasks:
			fn()
		}
	}
}

func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Loop) Done() <-chan struct{} {
	return l.done
}
