// Package loop provides a cooperative message loop: functions posted to a
// Loop run one at a time, in posting order, on the goroutine calling Run.
package loop

import (
	"context"
	"errors"
	"sync"
)

var ErrStopped = errors.New("loop stopped")

type Loop struct {
	mu    sync.Mutex
	queue []func()
	holds int
	wake  chan struct{}
	done  bool
}

func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
	}
}

// Post appends fn to the queue. It is safe to call Post from any goroutine,
// fn itself always runs on the goroutine running the loop.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.done {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// Hold keeps Run alive while the queue is empty until the returned release
// function is called. Outstanding asynchronous work takes a hold before it
// starts and posts its completion before releasing it.
func (l *Loop) Hold() func() {
	l.mu.Lock()
	l.holds++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.holds--
			l.mu.Unlock()
			l.signal()
		})
	}
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// RunOnce runs the first queued function if any and reports whether one
// was run.
func (l *Loop) RunOnce() bool {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.mu.Unlock()

	fn()
	return true
}

// Run executes queued functions until the queue is empty and no hold is
// outstanding, or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.RunOnce() {
			continue
		}
		if l.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Until runs the loop like Run but returns as soon as cond is true.
func (l *Loop) Until(ctx context.Context, cond func() bool) error {
	for !cond() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.RunOnce() {
			continue
		}
		if l.idle() {
			if cond() {
				return nil
			}
			return ErrStopped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
	return nil
}

// Close discards the queue. Later posts are ignored.
func (l *Loop) Close() {
	l.mu.Lock()
	l.done = true
	l.queue = nil
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) == 0 && (l.holds == 0 || l.done)
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
