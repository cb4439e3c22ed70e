package core

import (
	"maps"
	"math"
	"slices"

	"github.com/signalsfoundry/netdesign/model"
)

// trafficState holds every failure-aware derived quantity of a design. It is
// valid while its epoch equals the design epoch and is rebuilt in full on
// the next read otherwise.
type trafficState struct {
	epoch uint64

	routeDown map[int64]bool
	treeDown  map[int64]bool

	linkCarried      map[int64]float64
	linkOccupied     map[int64]float64
	demandCarried    map[int64]float64
	demandCycle      map[int64]model.RoutingCycleType
	mdemandCarried   map[int64]float64
	resourceOccupied map[int64]float64
}

func newTrafficState(epoch uint64) *trafficState {
	return &trafficState{
		epoch:            epoch,
		routeDown:        make(map[int64]bool),
		treeDown:         make(map[int64]bool),
		linkCarried:      make(map[int64]float64),
		linkOccupied:     make(map[int64]float64),
		demandCarried:    make(map[int64]float64),
		demandCycle:      make(map[int64]model.RoutingCycleType),
		mdemandCarried:   make(map[int64]float64),
		resourceOccupied: make(map[int64]float64),
	}
}

// noTraffic answers reads on removed elements.
var noTraffic = &trafficState{}

// derived returns the traffic state for the current epoch, recomputing it
// when stale.
func (d *Design) derived() *trafficState {
	if d == nil {
		return noTraffic
	}
	if d.traffic == nil || d.traffic.epoch != d.epoch {
		d.traffic = d.computeTraffic()
	}
	return d.traffic
}

// computeTraffic derives the traffic state from scratch.
func (d *Design) computeTraffic() *trafficState {
	ts := newTrafficState(d.epoch)
	for _, l := range d.layers {
		l.router.carry(d, l, ts)
		for _, t := range l.trees {
			down := d.treeDown(t)
			ts.treeDown[t.id] = down
			if down {
				continue
			}
			ts.mdemandCarried[t.demandID] += t.carried
			for id := range t.links {
				ts.linkCarried[id] += t.carried
				ts.linkOccupied[id] += t.occupied
			}
		}
	}
	// base debits are fixed amounts, independent of the upper's load
	for _, r := range d.resources {
		if !d.NodeByID(r.hostID).up {
			continue
		}
		for b, amount := range r.bases {
			ts.resourceOccupied[b] += amount
		}
	}
	return ts
}

// trafficStrategy derives carried traffic and occupation for the demands of
// one layer. Each routing type has exactly one strategy.
type trafficStrategy interface {
	carry(d *Design, l *Layer, ts *trafficState)
}

func strategyFor(t model.RoutingType) trafficStrategy {
	if t == model.HopByHopRouting {
		return hopByHop{}
	}
	return sourceRouting{}
}

// sourceRouting carries traffic only over explicit routes.
type sourceRouting struct{}

func (sourceRouting) carry(d *Design, l *Layer, ts *trafficState) {
	for _, dem := range l.demands {
		ts.demandCycle[dem.id] = model.Loopless
	}
	for _, r := range l.routes {
		if r.HasLoops() {
			ts.demandCycle[r.demandID] = model.OpenCycles
		}
		down := d.routeDown(r)
		ts.routeDown[r.id] = down
		if down {
			continue
		}
		ts.demandCarried[r.demandID] += r.carried
		for i, h := range r.hops {
			if h.resource {
				ts.resourceOccupied[h.id] += r.occupation[i]
				continue
			}
			ts.linkCarried[h.id] += r.carried
			ts.linkOccupied[h.id] += r.occupation[i]
		}
	}
}

// hopByHop propagates offered traffic through forwarding fractions.
type hopByHop struct{}

func (hopByHop) carry(d *Design, l *Layer, ts *trafficState) {
	rulesByDemand := make(map[int64]map[ruleKey]float64)
	for k, f := range l.rules {
		if rulesByDemand[k.demand] == nil {
			rulesByDemand[k.demand] = make(map[ruleKey]float64)
		}
		rulesByDemand[k.demand][k] = f
	}
	for _, dem := range l.demands {
		fwd := forwardingGraphOf(d, dem.id, rulesByDemand[dem.id])
		flows := hopByHopFlows(d, dem, fwd, ts)
		for lid, f := range flows.links {
			ts.linkCarried[lid] += f
			ts.linkOccupied[lid] += f
		}
		ts.demandCarried[dem.id] = flows.carried
	}
}

type demandFlows struct {
	links   map[int64]float64
	carried float64
}

// hopByHopFlows computes the per-link flow of dem and its carried traffic.
// Traffic forwarded into a down link or node is lost; traffic reaching a
// closed cycle is lost. Acyclic rules are solved exactly in topological
// order, cyclic ones by bounded fixed-point iteration.
func hopByHopFlows(d *Design, dem *Demand, fwd map[int64][]ruleEdge, ts *trafficState) demandFlows {
	out := demandFlows{links: make(map[int64]float64)}
	sccs := stronglyConnected(fwd)
	cycle := model.Loopless
	closed := newIDSet()
	for _, comp := range sccs {
		if !comp.cyclic {
			continue
		}
		if comp.isClosed(fwd) {
			cycle = model.ClosedCycles
			for id := range comp.nodes {
				closed.add(id)
			}
		} else if cycle == model.Loopless {
			cycle = model.OpenCycles
		}
	}
	ts.demandCycle[dem.id] = cycle

	if dem.offered == 0 || !d.NodeByID(dem.ingressID).up {
		return out
	}
	// edges usable for propagation: out of non-egress, non-closed nodes
	// over traversable links
	live := make(map[int64][]ruleEdge, len(fwd))
	for n, edges := range fwd {
		if n == dem.egressID || closed.has(n) {
			continue
		}
		for _, e := range edges {
			if d.LinkByID(e.link).isTraversable() {
				live[n] = append(live[n], e)
			}
		}
	}

	var inflow map[int64]float64
	if cycle == model.Loopless {
		inflow = propagateAcyclic(live, dem.ingressID, dem.offered, sccs)
	} else {
		inflow = propagateIterative(live, dem.ingressID, dem.offered, d.opts)
	}
	for n, edges := range live {
		for _, e := range edges {
			if f := inflow[n] * e.fraction; f > 0 {
				out.links[e.link] += f
			}
		}
	}
	out.carried = math.Min(dem.offered, inflow[dem.egressID])
	return out
}

// propagateAcyclic pushes offered traffic along a DAG. sccs lists the
// components in reverse topological order, so iterating it backwards visits
// every node after all of its predecessors.
func propagateAcyclic(live map[int64][]ruleEdge, ingress int64, offered float64, sccs []scc) map[int64]float64 {
	inflow := map[int64]float64{ingress: offered}
	for i := len(sccs) - 1; i >= 0; i-- {
		for n := range sccs[i].nodes {
			for _, e := range live[n] {
				inflow[e.dest] += inflow[n] * e.fraction
			}
		}
	}
	return inflow
}

// propagateIterative solves x = b + F^T x by Jacobi iteration until the
// largest change falls under epsilon or the iteration bound is reached.
func propagateIterative(live map[int64][]ruleEdge, ingress int64, offered float64, opts model.Options) map[int64]float64 {
	nodes := slices.Sorted(maps.Keys(live))
	x := map[int64]float64{ingress: offered}
	for iter := 0; iter < opts.MaxIterations; iter++ {
		next := map[int64]float64{ingress: offered}
		for _, n := range nodes {
			for _, e := range live[n] {
				next[e.dest] += x[n] * e.fraction
			}
		}
		delta := 0.0
		for n, v := range next {
			delta = math.Max(delta, math.Abs(v-x[n]))
		}
		for n, v := range x {
			if _, ok := next[n]; !ok {
				delta = math.Max(delta, math.Abs(v))
			}
		}
		x = next
		if delta < opts.Epsilon {
			break
		}
	}
	return x
}

// scc is a strongly connected component of a forwarding graph.
type scc struct {
	nodes  idSet
	cyclic bool
}

// isClosed reports whether no positive rule leaves the component.
func (c scc) isClosed(fwd map[int64][]ruleEdge) bool {
	for n := range c.nodes {
		for _, e := range fwd[n] {
			if !c.nodes.has(e.dest) {
				return false
			}
		}
	}
	return true
}

// stronglyConnected runs Tarjan's algorithm over the forwarding graph and
// returns its components in reverse topological order.
func stronglyConnected(fwd map[int64][]ruleEdge) []scc {
	var (
		index   = make(map[int64]int)
		low     = make(map[int64]int)
		onStack = newIDSet()
		stack   []int64
		next    int
		out     []scc
	)
	var strong func(v int64)
	strong = func(v int64) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack.add(v)
		for _, e := range fwd[v] {
			if _, seen := index[e.dest]; !seen {
				strong(e.dest)
				low[v] = min(low[v], low[e.dest])
			} else if onStack.has(e.dest) {
				low[v] = min(low[v], index[e.dest])
			}
		}
		if low[v] != index[v] {
			return
		}
		comp := scc{nodes: newIDSet()}
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack.remove(w)
			comp.nodes.add(w)
			if w == v {
				break
			}
		}
		if len(comp.nodes) > 1 {
			comp.cyclic = true
		} else {
			for _, e := range fwd[v] {
				if e.dest == v {
					comp.cyclic = true
				}
			}
		}
		out = append(out, comp)
	}
	nodes := newIDSet()
	for n, edges := range fwd {
		nodes.add(n)
		for _, e := range edges {
			nodes.add(e.dest)
		}
	}
	for _, n := range nodes.sorted() {
		if _, seen := index[n]; !seen {
			strong(n)
		}
	}
	return out
}
