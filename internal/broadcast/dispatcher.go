package broadcast

import (
	"log/slog"

	"github.com/suda/leno/pkg/types"
)

// FailureFunc is told about every subscriber removed because a send failed.
// It runs after the Registry mutex has been released.
type FailureFunc func(s *Subscriber, err error)

// Observer receives per-broadcast delivery statistics.
type Observer interface {
	LineBroadcast(delivered, failed int)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFailureFunc installs fn as the send-failure callback.
func WithFailureFunc(fn FailureFunc) DispatcherOption {
	return func(d *Dispatcher) { d.onFailure = fn }
}

// WithObserver installs o to receive delivery statistics.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// Dispatcher delivers each Line to every subscriber in a Registry.
type Dispatcher struct {
	reg       *Registry
	onFailure FailureFunc
	observer  Observer
}

// NewDispatcher returns a Dispatcher reading from reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{reg: reg}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type sendFailure struct {
	sub *Subscriber
	err error
}

// Broadcast attempts delivery of line to every Open subscriber registered at
// the time of the call. A failed delivery never stops the others; the failed
// subscriber is closed and removed before Broadcast returns.
func (d *Dispatcher) Broadcast(line types.Line) {
	var failures []sendFailure
	delivered := 0

	d.reg.mu.Lock()
	for _, s := range d.reg.subs {
		if err := s.Deliver(line); err != nil {
			failures = append(failures, sendFailure{sub: s, err: err})
			continue
		}
		delivered++
	}
	for _, f := range failures {
		d.reg.removeLocked(f.sub)
	}
	d.reg.mu.Unlock()

	for _, f := range failures {
		slog.Warn("broadcast: dropping subscriber after send failure",
			"subscriber", f.sub.ID(), "err", f.err)
		if d.onFailure != nil {
			d.onFailure(f.sub, f.err)
		}
	}
	if d.observer != nil {
		d.observer.LineBroadcast(delivered, len(failures))
	}
}
