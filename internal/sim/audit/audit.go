// Package audit periodically verifies the caches of a workspace's live
// design.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/sim/state"
)

// Result is the outcome of one audit.
type Result struct {
	At    time.Time
	Epoch uint64
	// Skipped is set when the design had not changed since the last clean
	// audit and the check was not repeated.
	Skipped bool
	Err     error
}

// Auditor runs the consistency check of a Workspace on a fixed interval.
type Auditor struct {
	ws       *state.Workspace
	interval time.Duration
	log      logging.Logger
	now      func() time.Time

	mu        sync.RWMutex
	listeners []func(Result)
	last      Result
	clean     bool
}

// NewAuditor constructs an auditor for ws.
func NewAuditor(ws *state.Workspace, interval time.Duration, log logging.Logger) *Auditor {
	if log == nil {
		log = logging.Noop()
	}
	return &Auditor{ws: ws, interval: interval, log: log, now: time.Now}
}

// AddListener registers a callback invoked after every audit.
func (a *Auditor) AddListener(fn func(Result)) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Last returns the most recent result.
func (a *Auditor) Last() Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// Run audits every interval until ctx is done. A non-positive interval
// returns immediately.
func (a *Auditor) Run(ctx context.Context) {
	if a.interval <= 0 {
		return
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.log.Info(ctx, "consistency audit started", logging.String("interval", a.interval.String()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single audit. The check is skipped when the design's
// epoch equals that of the last clean audit.
func (a *Auditor) RunOnce(ctx context.Context) Result {
	epoch := a.ws.Epoch()

	a.mu.RLock()
	unchanged := a.clean && a.last.Epoch == epoch
	a.mu.RUnlock()

	res := Result{At: a.now(), Epoch: epoch, Skipped: unchanged}
	if !unchanged {
		res.Err = a.ws.CheckConsistency(ctx)
	}

	a.mu.Lock()
	a.last = res
	a.clean = res.Err == nil
	listeners := append([]func(Result){}, a.listeners...)
	a.mu.Unlock()

	if res.Err != nil {
		a.log.Warn(ctx, "consistency audit failed", logging.Epoch(epoch), logging.Err(res.Err))
	} else if !res.Skipped {
		a.log.Debug(ctx, "consistency audit passed", logging.Epoch(epoch))
	}
	for _, fn := range listeners {
		fn(res)
	}
	return res
}
