// Package failure evaluates single shared-risk-group failures: every SRG is
// failed in turn on a private copy of the design and the traffic it takes
// down is reported.
package failure

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/observability"
	"github.com/signalsfoundry/netdesign/internal/sim/state"
)

// Impact is the effect of failing one SRG.
type Impact struct {
	SRGID        int64   `json:"srgId" yaml:"srgId"`
	Availability float64 `json:"availability" yaml:"availability"`

	// FailedNodes and FailedLinks count members that were up before the
	// failure.
	FailedNodes int `json:"failedNodes" yaml:"failedNodes"`
	FailedLinks int `json:"failedLinks" yaml:"failedLinks"`

	AffectedRoutes int `json:"affectedRoutes" yaml:"affectedRoutes"`
	AffectedTrees  int `json:"affectedTrees" yaml:"affectedTrees"`

	CarriedTraffic float64 `json:"carriedTraffic" yaml:"carriedTraffic"`
	LostTraffic    float64 `json:"lostTraffic" yaml:"lostTraffic"`
	// LostByLayer is keyed by layer id; layers without loss are omitted.
	LostByLayer map[int64]float64 `json:"lostByLayer,omitempty" yaml:"lostByLayer,omitempty"`

	OversubscribedLinks int `json:"oversubscribedLinks" yaml:"oversubscribedLinks"`
}

// Report is the outcome of a sweep. Impacts are ordered by decreasing lost
// traffic, ties by SRG id.
type Report struct {
	Design          string   `json:"design" yaml:"design"`
	BaselineCarried float64  `json:"baselineCarried" yaml:"baselineCarried"`
	Impacts         []Impact `json:"impacts" yaml:"impacts"`
}

// Worst returns the impact losing the most traffic.
func (r *Report) Worst() (Impact, bool) {
	if r == nil || len(r.Impacts) == 0 {
		return Impact{}, false
	}
	return r.Impacts[0], true
}

// Analyzer runs SRG sweeps.
type Analyzer struct {
	log     logging.Logger
	workers int
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithWorkers bounds the number of SRGs evaluated in parallel.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// NewAnalyzer returns an analyzer using one worker per CPU by default.
func NewAnalyzer(log logging.Logger, opts ...Option) *Analyzer {
	if log == nil {
		log = logging.Noop()
	}
	a := &Analyzer{log: log, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Sweep fails every SRG of d, one at a time, each on its own copy. d is only
// read and must not be mutated while Sweep runs.
func (a *Analyzer) Sweep(ctx context.Context, d *core.Design) (report *Report, err error) {
	if d == nil {
		return nil, fmt.Errorf("sweep: %w", core.ErrInvalidArgument)
	}
	ctx, span := observability.StartSpan(ctx, "failure.Sweep",
		attribute.String("design", d.Name()),
		attribute.Int("srgs", d.NumberOfSRGs()),
	)
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()

	base := d.Copy()
	// Warms the derived traffic of base, so the workers below only read it.
	baseline := base.Summary()
	before := carriedByLayer(base)
	srgs := base.SRGs()
	impacts := make([]Impact, len(srgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, srg := range srgs {
		id := srg.ID()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			impact, err := evaluate(base, id, before)
			if err != nil {
				return err
			}
			impacts[i] = impact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(impacts, func(x, y Impact) int {
		if c := cmp.Compare(y.LostTraffic, x.LostTraffic); c != 0 {
			return c
		}
		return cmp.Compare(x.SRGID, y.SRGID)
	})
	report = &Report{Design: d.Name(), BaselineCarried: baseline.CarriedTraffic, Impacts: impacts}

	fields := []logging.Field{
		logging.String("design", d.Name()),
		logging.Int("srgs", len(impacts)),
		logging.Float64("baseline_carried", baseline.CarriedTraffic),
		logging.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	if worst, ok := report.Worst(); ok {
		fields = append(fields,
			logging.Int64("worst_srg", worst.SRGID),
			logging.Float64("worst_lost", worst.LostTraffic),
		)
	}
	a.log.Info(ctx, "srg sweep finished", fields...)
	return report, nil
}

// SweepWorkspace sweeps a snapshot of the workspace's live design.
func (a *Analyzer) SweepWorkspace(ctx context.Context, w *state.Workspace) (*Report, error) {
	return a.Sweep(ctx, w.Snapshot())
}

// evaluate fails one SRG on a private copy of base. base is only read.
func evaluate(base *core.Design, srgID int64, before map[int64]float64) (Impact, error) {
	work := base.Copy()
	srg := work.SRGByID(srgID)
	if srg == nil {
		return Impact{}, fmt.Errorf("srg %d: %w", srgID, core.ErrElementNotFound)
	}
	impact := Impact{
		SRGID:          srgID,
		Availability:   srg.Availability(),
		AffectedRoutes: len(srg.AffectedRoutes()),
		AffectedTrees:  len(srg.AffectedTrees()),
	}
	for _, n := range srg.Nodes() {
		if n.IsUp() {
			impact.FailedNodes++
		}
	}
	for _, l := range srg.Links() {
		if l.IsUp() {
			impact.FailedLinks++
		}
	}
	if err := srg.SetAsFailed(); err != nil {
		return Impact{}, err
	}

	after := carriedByLayer(work)
	summary := work.Summary()
	impact.CarriedTraffic = summary.CarriedTraffic
	impact.OversubscribedLinks = summary.OversubscribedLinks
	eps := work.Options().Epsilon
	for layerID, was := range before {
		lost := was - after[layerID]
		if lost > eps {
			if impact.LostByLayer == nil {
				impact.LostByLayer = make(map[int64]float64)
			}
			impact.LostByLayer[layerID] = lost
			impact.LostTraffic += lost
		}
	}
	return impact, nil
}

// carriedByLayer sums unicast and multicast carried traffic per layer id.
func carriedByLayer(d *core.Design) map[int64]float64 {
	out := make(map[int64]float64, d.NumberOfLayers())
	for _, layer := range d.Layers() {
		total := 0.0
		for _, dem := range d.Demands(layer) {
			total += dem.CarriedTraffic()
		}
		for _, md := range d.MulticastDemands(layer) {
			total += md.CarriedTraffic()
		}
		out[layer.ID()] = total
	}
	return out
}
