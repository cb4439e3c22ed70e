package core

import (
	"math"
	"slices"

	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/model"
)

// Demand is a unicast traffic request between two nodes of one layer.
type Demand struct {
	elementBase

	layerID   int64
	ingressID int64
	egressID  int64
	offered   float64

	serviceChain []string
	maxLatencyMs float64 // 0 means unbounded

	routes        idSet
	coupledLinkID int64
}

func (*Demand) Kind() ElementKind { return KindDemand }

// AddDemand creates a demand from ingress to egress in layer (the default
// layer when nil).
func (d *Design) AddDemand(ingress, egress *Node, offered float64, layer *Layer) (*Demand, error) {
	if layer == nil {
		layer = d.DefaultLayer()
	}
	return d.addDemand(noID, ingress, egress, offered, nil, 0, layer)
}

// AddDemandBidirectional creates two opposite demands with the same offered
// traffic.
func (d *Design) AddDemandBidirectional(a, b *Node, offered float64, layer *Layer) (*Demand, *Demand, error) {
	if layer == nil {
		layer = d.DefaultLayer()
	}
	if err := d.validateDemand("AddDemandBidirectional", a, b, offered, layer); err != nil {
		return nil, nil, err
	}
	ab, _ := d.addDemand(noID, a, b, offered, nil, 0, layer)
	ba, _ := d.addDemand(noID, b, a, offered, nil, 0, layer)
	return ab, ba, nil
}

func (d *Design) validateDemand(op string, ingress, egress *Node, offered float64, layer *Layer) error {
	for _, e := range []Element{ingress, egress, layer} {
		if err := d.owns(op, e); err != nil {
			return err
		}
	}
	if ingress == egress {
		return opErr(op, ErrInvalidArgument, "ingress and egress are the same node %d", ingress.id)
	}
	if !finiteNonNegative(offered) {
		return opErr(op, ErrInvalidArgument, "offered traffic must be finite and non-negative, got %v", offered)
	}
	return nil
}

func (d *Design) addDemand(id int64, ingress, egress *Node, offered float64, chain []string, maxLatencyMs float64, layer *Layer) (*Demand, error) {
	const op = "AddDemand"
	if err := d.validateDemand(op, ingress, egress, offered, layer); err != nil {
		return nil, err
	}
	if err := d.checkRestoredID(op, id); err != nil {
		return nil, err
	}
	dem := &Demand{
		elementBase:   newBase(d, d.newID(id), len(layer.demands)),
		layerID:       layer.id,
		ingressID:     ingress.id,
		egressID:      egress.id,
		offered:       offered,
		serviceChain:  slices.Clone(chain),
		maxLatencyMs:  maxLatencyMs,
		routes:        newIDSet(),
		coupledLinkID: noID,
	}
	layer.demands = append(layer.demands, dem)
	d.register(dem)
	return dem, nil
}

func (dem *Demand) Layer() *Layer           { return dem.d.LayerByID(dem.layerID) }
func (dem *Demand) IngressNode() *Node      { return dem.d.NodeByID(dem.ingressID) }
func (dem *Demand) EgressNode() *Node       { return dem.d.NodeByID(dem.egressID) }
func (dem *Demand) OfferedTraffic() float64 { return dem.offered }

// SetOfferedTraffic updates the offered traffic.
func (dem *Demand) SetOfferedTraffic(v float64) error {
	if dem.d == nil {
		return domainErr("SetOfferedTraffic", dem, ErrElementRemoved)
	}
	if !finiteNonNegative(v) {
		return domainErr("SetOfferedTraffic", dem, ErrInvalidArgument)
	}
	if dem.offered != v {
		dem.offered = v
		dem.d.touch()
	}
	return nil
}

// ServiceChain returns the resource types every route must traverse, in order.
func (dem *Demand) ServiceChain() []string { return slices.Clone(dem.serviceChain) }

// SetServiceChain sets the required resource types. It is rejected while the
// demand has routes.
func (dem *Demand) SetServiceChain(types []string) error {
	const op = "SetServiceChain"
	if dem.d == nil {
		return domainErr(op, dem, ErrElementRemoved)
	}
	if len(dem.routes) > 0 {
		return domainErr(op, dem, ErrServiceChain)
	}
	for _, t := range types {
		if t == "" {
			return domainErr(op, dem, ErrInvalidArgument)
		}
	}
	dem.serviceChain = slices.Clone(types)
	return nil
}

// MaxLatencyMs returns the latency bound; zero means unbounded.
func (dem *Demand) MaxLatencyMs() float64 { return dem.maxLatencyMs }

func (dem *Demand) SetMaxLatencyMs(ms float64) error {
	if dem.d == nil {
		return domainErr("SetMaxLatencyMs", dem, ErrElementRemoved)
	}
	if !finiteNonNegative(ms) {
		return domainErr("SetMaxLatencyMs", dem, ErrInvalidArgument)
	}
	dem.maxLatencyMs = ms
	return nil
}

// Routes returns the demand routes ordered by id.
func (dem *Demand) Routes() []*Route {
	out := make([]*Route, 0, len(dem.routes))
	for _, id := range dem.routes.sorted() {
		out = append(out, dem.d.RouteByID(id))
	}
	return out
}

// CarriedTraffic returns the failure-aware carried traffic.
func (dem *Demand) CarriedTraffic() float64 { return dem.d.derived().demandCarried[dem.id] }

// BlockedTraffic returns offered minus carried traffic, floored at zero.
func (dem *Demand) BlockedTraffic() float64 {
	return math.Max(0, dem.offered-dem.CarriedTraffic())
}

// IsBlocked reports carried traffic below offered traffic beyond epsilon.
func (dem *Demand) IsBlocked() bool {
	if dem.d == nil {
		return false
	}
	return dem.BlockedTraffic() > dem.d.opts.Epsilon
}

// RoutingCycleType classifies the demand routing: routes or forwarding
// rules that revisit a node are open cycles; hop-by-hop cycles that traffic
// cannot leave are closed cycles.
func (dem *Demand) RoutingCycleType() model.RoutingCycleType {
	return dem.d.derived().demandCycle[dem.id]
}

// WorstCasePropagationDelayMs returns the largest propagation delay among the
// up routes (source routing) or forwarding paths (hop-by-hop). Cyclic
// forwarding yields +Inf.
func (dem *Demand) WorstCasePropagationDelayMs() float64 {
	if dem.d == nil {
		return 0
	}
	layer := dem.Layer()
	if layer.routingType == model.SourceRouting {
		worst := 0.0
		for _, r := range dem.Routes() {
			if !r.IsDown() {
				worst = math.Max(worst, r.PropagationDelayMs())
			}
		}
		return worst
	}
	if dem.RoutingCycleType() != model.Loopless {
		return math.Inf(1)
	}
	fwd := dem.forwardingGraph()
	memo := make(map[int64]float64)
	var longest func(node int64) float64
	longest = func(node int64) float64 {
		if v, ok := memo[node]; ok {
			return v
		}
		best := 0.0
		for _, e := range fwd[node] {
			best = math.Max(best, dem.d.LinkByID(e.link).PropagationDelayMs()+longest(e.dest))
		}
		memo[node] = best
		return best
	}
	return longest(dem.ingressID)
}

// IsCoupled reports whether an upper-layer link mirrors this demand.
func (dem *Demand) IsCoupled() bool { return dem.coupledLinkID != noID }

// CoupledLink returns the upper-layer link whose capacity mirrors this
// demand, or nil.
func (dem *Demand) CoupledLink() *Link {
	if dem.coupledLinkID == noID {
		return nil
	}
	return dem.d.LinkByID(dem.coupledLinkID)
}

// CoupleToUpperLayerLink binds link's capacity to this demand's carried
// traffic. The link must belong to another layer, join the same end nodes
// and be uncoupled; the layer coupling graph must stay acyclic.
func (dem *Demand) CoupleToUpperLayerLink(link *Link) error {
	const op = "CoupleToUpperLayerLink"
	if dem.d == nil {
		return domainErr(op, dem, ErrElementRemoved)
	}
	d := dem.d
	if err := d.owns(op, link); err != nil {
		return err
	}
	if dem.IsCoupled() {
		return opErr(op, ErrCoupling, "demand %d already coupled to link %d", dem.id, dem.coupledLinkID)
	}
	if link.originID != dem.ingressID || link.destID != dem.egressID {
		return opErr(op, ErrCoupling, "link %d and demand %d join different nodes", link.id, dem.id)
	}
	if err := d.checkCoupling(op, dem.layerID, link); err != nil {
		return err
	}
	dem.coupledLinkID = link.id
	link.coupledDemandID = dem.id
	d.touch()
	return nil
}

// CoupleToNewLinkCreated creates a link in upper between the demand end
// nodes and couples it to the demand.
func (dem *Demand) CoupleToNewLinkCreated(upper *Layer) (*Link, error) {
	const op = "CoupleToNewLinkCreated"
	if dem.d == nil {
		return nil, domainErr(op, dem, ErrElementRemoved)
	}
	d := dem.d
	if err := d.owns(op, upper); err != nil {
		return nil, err
	}
	if dem.IsCoupled() {
		return nil, opErr(op, ErrCoupling, "demand %d already coupled", dem.id)
	}
	if err := d.checkLayerCoupling(op, dem.layerID, upper.id); err != nil {
		return nil, err
	}
	link, err := d.addLink(noID, dem.IngressNode(), dem.EgressNode(), 0, 0, DefaultPropagationSpeedKmPerSec, upper, true)
	if err != nil {
		return nil, err
	}
	dem.coupledLinkID = link.id
	link.coupledDemandID = dem.id
	d.touch()
	return link, nil
}

// Decouple releases the coupling; the link keeps the capacity it mirrored.
func (dem *Demand) Decouple() error {
	if dem.d == nil {
		return domainErr("Decouple", dem, ErrElementRemoved)
	}
	dem.decouple()
	return nil
}

func (dem *Demand) decouple() {
	link := dem.CoupledLink()
	if link == nil {
		return
	}
	link.capacity = dem.CarriedTraffic()
	link.coupledDemandID = noID
	dem.coupledLinkID = noID
	dem.d.touch()
}

// checkCoupling validates coupling link to an element of lowerLayer.
func (d *Design) checkCoupling(op string, lowerLayer int64, link *Link) error {
	if link.IsCoupled() {
		return opErr(op, ErrCoupling, "link %d already coupled", link.id)
	}
	return d.checkLayerCoupling(op, lowerLayer, link.layerID)
}

// checkLayerCoupling rejects a coupling lower -> upper that would close a
// cycle in the layer coupling graph.
func (d *Design) checkLayerCoupling(op string, lower, upper int64) error {
	if lower == upper {
		return opErr(op, ErrCoupling, "coupled elements must belong to different layers")
	}
	graph := d.layerCouplingGraph()
	seen := newIDSet(upper)
	stack := []int64{upper}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == lower {
			return opErr(op, ErrCoupling, "coupling layer %d to layer %d creates a cycle", lower, upper)
		}
		for _, next := range graph[n].sorted() {
			if !seen.has(next) {
				seen.add(next)
				stack = append(stack, next)
			}
		}
	}
	return nil
}

// layerCouplingGraph maps each layer to the layers whose links are coupled
// to its demands or multicast demands.
func (d *Design) layerCouplingGraph() map[int64]idSet {
	g := make(map[int64]idSet)
	edge := func(from, to int64) {
		if g[from] == nil {
			g[from] = newIDSet()
		}
		g[from].add(to)
	}
	for _, l := range d.layers {
		for _, link := range l.links {
			if dem := link.CoupledDemand(); dem != nil {
				edge(dem.layerID, l.id)
			}
			if md := link.CoupledMulticastDemand(); md != nil {
				edge(md.layerID, l.id)
			}
		}
	}
	return g
}

// Remove deletes the demand with its routes and forwarding rules. A coupled
// upper link is decoupled and keeps its last capacity.
func (dem *Demand) Remove() error {
	if dem.d == nil {
		return domainErr("RemoveDemand", dem, ErrElementRemoved)
	}
	dem.remove()
	return nil
}

func (dem *Demand) remove() {
	d := dem.d
	layer := dem.Layer()
	dem.decouple()
	for _, id := range dem.routes.sorted() {
		if r := d.RouteByID(id); r != nil {
			r.remove()
		}
	}
	for k := range layer.rules {
		if k.demand == dem.id {
			delete(layer.rules, k)
		}
	}
	layer.demands = removeFromList(layer.demands, dem.index)
	d.debug("demand removed", logging.ElementID("demand", dem.id), logging.ElementID("layer", layer.id))
	d.unregister(dem)
}
