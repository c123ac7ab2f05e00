package utils

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrShutdown is returned by waits that were cut short by a shutdown request.
var ErrShutdown = errors.New("shutdown requested")

// Shutdown is a process-wide cancellation token. Request is lock-free and
// safe to call from a signal-handling goroutine; it is idempotent.
//
// Unlike a context, it never interrupts in-flight browser work: callers
// poll Requested at well-defined points and only sleeps select on Done.
type Shutdown struct {
	requested atomic.Bool
	done      chan struct{}
}

// NewShutdown returns an un-signalled token.
func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Request signals shutdown. It returns true only for the first call.
func (s *Shutdown) Request() bool {
	if s.requested.CompareAndSwap(false, true) {
		close(s.done)
		return true
	}
	return false
}

// Requested reports whether shutdown has been signalled. A nil token never is.
func (s *Shutdown) Requested() bool {
	return s != nil && s.requested.Load()
}

// Done is closed once shutdown is requested.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

// Sleep waits for d or until shutdown, whichever comes first.
// A nil token sleeps unconditionally.
func (s *Shutdown) Sleep(d time.Duration) error {
	if d <= 0 {
		if s != nil && s.Requested() {
			return ErrShutdown
		}
		return nil
	}
	if s == nil {
		time.Sleep(d)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-s.done:
		return ErrShutdown
	}
}
