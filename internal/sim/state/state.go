// Package state owns the live design of a process. A Workspace serialises
// writers, lets readers share the design, and applies algorithm runs
// atomically: an algorithm works on a copy that replaces the live design
// only if it leaves every cache consistent.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/observability"
	"github.com/signalsfoundry/netdesign/model"
)

var (
	// ErrConcurrentUpdate indicates the live design changed while an
	// algorithm was running on its copy; the result was discarded.
	ErrConcurrentUpdate = errors.New("design changed while the algorithm was running")
	// ErrInconsistentResult indicates an algorithm left the copy with
	// diverged caches; the result was discarded.
	ErrInconsistentResult = errors.New("algorithm left the design inconsistent")
	// ErrAlgorithmPanicked indicates an algorithm panicked; the result was
	// discarded.
	ErrAlgorithmPanicked = errors.New("algorithm panicked")
)

// Algorithm mutates the design it is handed and returns a human-readable
// status line.
type Algorithm func(d *core.Design) (string, error)

// MetricsRecorder receives design gauges, consistency check outcomes and
// algorithm run timings.
type MetricsRecorder interface {
	SetSummary(s model.Summary)
	ObserveConsistencyCheck(err error)
	ObserveAlgorithmRun(algorithm string, d time.Duration, err error)
}

// Workspace guards a single design.
type Workspace struct {
	// mu guards design. Every write path leaves the derived traffic cache
	// current before unlocking, so read-locked callers never recompute it.
	mu     sync.RWMutex
	design *core.Design
	// designID names the live design in logs; AssignFrom keeps it.
	designID string

	// runMu serialises algorithm runs so at most one copy is in flight.
	runMu sync.Mutex

	log     logging.Logger
	metrics MetricsRecorder
}

// WorkspaceOption customises Workspace construction.
type WorkspaceOption func(*Workspace)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) WorkspaceOption {
	return func(w *Workspace) {
		w.metrics = m
	}
}

// NewWorkspace takes ownership of d. A nil design is replaced by an empty
// one. Callers must not touch d directly afterwards.
func NewWorkspace(d *core.Design, log logging.Logger, opts ...WorkspaceOption) *Workspace {
	if log == nil {
		log = logging.Noop()
	}
	if d == nil {
		d = core.New(core.WithLogger(log))
	}
	w := &Workspace{design: d, designID: d.InstanceID().String(), log: log, metrics: nopRecorder{}}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.metrics == nil {
		w.metrics = nopRecorder{}
	}
	w.mu.Lock()
	w.refreshLocked()
	w.mu.Unlock()
	return w
}

// WithReadLock executes fn while holding the read lock. fn must treat the
// design as read-only and must not call other Workspace methods.
func (w *Workspace) WithReadLock(fn func(d *core.Design) error) error {
	if fn == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn(w.design)
}

// Update applies fn directly to the live design under the write lock. The
// core's mutators validate before they mutate, so a returned error leaves
// the design as it was, provided fn stops at the first failing call.
func (w *Workspace) Update(ctx context.Context, op string, fn func(d *core.Design) error) error {
	ctx, reqLog := logging.WithDesignLogger(ctx, w.log, w.designID)
	w.mu.Lock()
	defer w.mu.Unlock()

	err := fn(w.design)
	w.refreshLocked()
	if err != nil {
		reqLog.Debug(ctx, "update rejected", logging.String("operation", op), logging.Err(err))
		return err
	}
	reqLog.Debug(ctx, "design updated",
		logging.String("operation", op),
		logging.Epoch(w.design.Epoch()),
	)
	return nil
}

// Snapshot returns a private copy of the live design.
func (w *Workspace) Snapshot() *core.Design {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.design.Copy()
}

// Summary digests the live design.
func (w *Workspace) Summary() model.Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.design.Summary()
}

// DesignID names the live design instance in logs and traces.
func (w *Workspace) DesignID() string { return w.designID }

// Epoch reports the live design's mutation counter.
func (w *Workspace) Epoch() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.design.Epoch()
}

// CheckConsistency verifies every cache of the live design.
func (w *Workspace) CheckConsistency(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "workspace.CheckConsistency")
	w.mu.RLock()
	err := w.design.VerifyCaches()
	w.mu.RUnlock()

	w.metrics.ObserveConsistencyCheck(err)
	if err != nil {
		w.log.Error(ctx, "design caches diverged", logging.String("design_id", w.designID), logging.Err(err))
	}
	observability.EndSpan(span, err)
	return err
}

// Replace swaps the live design content for a copy of d, e.g. after a load.
// Element handles obtained from the previous content become removed.
func (w *Workspace) Replace(ctx context.Context, d *core.Design) error {
	if d == nil {
		return fmt.Errorf("replace design: %w", core.ErrInvalidArgument)
	}
	if err := d.VerifyCaches(); err != nil {
		w.metrics.ObserveConsistencyCheck(err)
		return fmt.Errorf("%w: %w", ErrInconsistentResult, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.design.AssignFrom(d); err != nil {
		return err
	}
	w.refreshLocked()
	w.log.Info(ctx, "design replaced",
		logging.String("name", d.Name()),
		logging.Int("nodes", d.NumberOfNodes()),
		logging.Int("layers", d.NumberOfLayers()),
	)
	return nil
}

// RunAlgorithm runs alg on a copy of the live design. The copy replaces the
// live content only when alg succeeds, the copy passes the consistency
// check, ctx is still live and no other writer changed the design in the
// meantime. Otherwise the live design is untouched.
func (w *Workspace) RunAlgorithm(ctx context.Context, name string, alg Algorithm) (status string, err error) {
	if alg == nil {
		return "", fmt.Errorf("run %q: %w", name, core.ErrInvalidArgument)
	}
	ctx, reqLog := logging.WithDesignLogger(ctx, w.log.With(logging.String("algorithm", name)), w.designID)
	ctx, span := observability.StartSpan(ctx, "workspace.RunAlgorithm", attribute.String("algorithm", name))
	start := time.Now()
	defer func() {
		w.metrics.ObserveAlgorithmRun(name, time.Since(start), err)
		observability.EndSpan(span, err)
	}()

	w.runMu.Lock()
	defer w.runMu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.RLock()
	work := w.design.Copy()
	base := w.design.Epoch()
	w.mu.RUnlock()

	status, err = runGuarded(alg, work)
	if err != nil {
		reqLog.Info(ctx, "algorithm failed", logging.Err(err))
		return status, err
	}

	checkErr := work.VerifyCaches()
	w.metrics.ObserveConsistencyCheck(checkErr)
	if checkErr != nil {
		reqLog.Error(ctx, "algorithm left diverged caches", logging.Err(checkErr))
		return status, fmt.Errorf("%w: %w", ErrInconsistentResult, checkErr)
	}
	if err := ctx.Err(); err != nil {
		return status, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.design.Epoch() != base {
		return status, ErrConcurrentUpdate
	}
	if err := w.design.AssignFrom(work); err != nil {
		return status, err
	}
	w.refreshLocked()

	reqLog.Info(ctx, "algorithm applied",
		logging.String("status", status),
		logging.Epoch(w.design.Epoch()),
	)
	return status, nil
}

func runGuarded(alg Algorithm, d *core.Design) (status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAlgorithmPanicked, r)
		}
	}()
	return alg(d)
}

// refreshLocked warms the derived traffic cache and pushes gauges. Caller
// must hold the write lock.
func (w *Workspace) refreshLocked() {
	w.metrics.SetSummary(w.design.Summary())
}

type nopRecorder struct{}

func (nopRecorder) SetSummary(model.Summary)                         {}
func (nopRecorder) ObserveConsistencyCheck(error)                    {}
func (nopRecorder) ObserveAlgorithmRun(string, time.Duration, error) {}
