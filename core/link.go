package core

import (
	"math"

	"github.com/signalsfoundry/netdesign/internal/logging"
)

// DefaultPropagationSpeedKmPerSec is the speed of light in fibre.
const DefaultPropagationSpeedKmPerSec = 200000.0

// Link is a directed edge between two nodes in one layer. A link may be
// coupled to a demand (or multicast demand) of a lower layer, in which case
// its capacity mirrors that element's carried traffic.
type Link struct {
	elementBase

	layerID  int64
	originID int64
	destID   int64

	capacity  float64
	lengthKm  float64
	propSpeed float64
	up        bool

	coupledDemandID  int64
	coupledMDemandID int64

	routes map[int64]int // route id -> number of traversals
	trees  idSet
	srgs   idSet
}

func (*Link) Kind() ElementKind { return KindLink }

// AddLink creates an up link from origin to destination in layer (the
// default layer when nil).
func (d *Design) AddLink(origin, destination *Node, capacity, lengthKm, propSpeedKmPerSec float64, layer *Layer) (*Link, error) {
	if layer == nil {
		layer = d.DefaultLayer()
	}
	return d.addLink(noID, origin, destination, capacity, lengthKm, propSpeedKmPerSec, layer, true)
}

// AddLinkBidirectional creates a pair of opposite links with the same
// parameters.
func (d *Design) AddLinkBidirectional(a, b *Node, capacity, lengthKm, propSpeedKmPerSec float64, layer *Layer) (*Link, *Link, error) {
	if layer == nil {
		layer = d.DefaultLayer()
	}
	if err := d.validateLink("AddLinkBidirectional", a, b, capacity, lengthKm, propSpeedKmPerSec, layer); err != nil {
		return nil, nil, err
	}
	ab, _ := d.addLink(noID, a, b, capacity, lengthKm, propSpeedKmPerSec, layer, true)
	ba, _ := d.addLink(noID, b, a, capacity, lengthKm, propSpeedKmPerSec, layer, true)
	return ab, ba, nil
}

func (d *Design) validateLink(op string, origin, destination *Node, capacity, lengthKm, speed float64, layer *Layer) error {
	for _, e := range []Element{origin, destination, layer} {
		if err := d.owns(op, e); err != nil {
			return err
		}
	}
	if origin == destination {
		return opErr(op, ErrInvalidArgument, "self-loop at node %d", origin.id)
	}
	if !finiteNonNegative(capacity) || !finiteNonNegative(lengthKm) {
		return opErr(op, ErrInvalidArgument, "capacity and length must be finite and non-negative")
	}
	if !(speed > 0) || math.IsInf(speed, 0) {
		return opErr(op, ErrInvalidArgument, "propagation speed must be positive, got %v", speed)
	}
	return nil
}

func (d *Design) addLink(id int64, origin, destination *Node, capacity, lengthKm, speed float64, layer *Layer, up bool) (*Link, error) {
	const op = "AddLink"
	if err := d.validateLink(op, origin, destination, capacity, lengthKm, speed, layer); err != nil {
		return nil, err
	}
	if err := d.checkRestoredID(op, id); err != nil {
		return nil, err
	}
	l := &Link{
		elementBase:      newBase(d, d.newID(id), len(layer.links)),
		layerID:          layer.id,
		originID:         origin.id,
		destID:           destination.id,
		capacity:         capacity,
		lengthKm:         lengthKm,
		propSpeed:        speed,
		up:               up,
		coupledDemandID:  noID,
		coupledMDemandID: noID,
		routes:           make(map[int64]int),
		trees:            newIDSet(),
		srgs:             newIDSet(),
	}
	layer.links = append(layer.links, l)
	origin.outLinks.add(l.id)
	destination.inLinks.add(l.id)
	d.register(l)
	return l, nil
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func (l *Link) Layer() *Layer             { return l.d.LayerByID(l.layerID) }
func (l *Link) OriginNode() *Node         { return l.d.NodeByID(l.originID) }
func (l *Link) DestinationNode() *Node    { return l.d.NodeByID(l.destID) }
func (l *Link) LengthKm() float64         { return l.lengthKm }
func (l *Link) PropagationSpeed() float64 { return l.propSpeed }

// PropagationDelayMs returns the one-way propagation delay.
func (l *Link) PropagationDelayMs() float64 {
	return 1000 * l.lengthKm / l.propSpeed
}

// SetLengthKm updates the link length.
func (l *Link) SetLengthKm(km float64) error {
	if l.d == nil {
		return domainErr("SetLengthKm", l, ErrElementRemoved)
	}
	if !finiteNonNegative(km) {
		return domainErr("SetLengthKm", l, ErrInvalidArgument)
	}
	l.lengthKm = km
	return nil
}

// SetPropagationSpeed updates the propagation speed in km/s.
func (l *Link) SetPropagationSpeed(kmPerSec float64) error {
	if l.d == nil {
		return domainErr("SetPropagationSpeed", l, ErrElementRemoved)
	}
	if !(kmPerSec > 0) || math.IsInf(kmPerSec, 0) {
		return domainErr("SetPropagationSpeed", l, ErrInvalidArgument)
	}
	l.propSpeed = kmPerSec
	return nil
}

// Capacity returns the link capacity. A coupled link reports the carried
// traffic of its coupled demand or multicast demand.
func (l *Link) Capacity() float64 {
	if l.d == nil {
		return l.capacity
	}
	if l.coupledDemandID != noID {
		return l.d.DemandByID(l.coupledDemandID).CarriedTraffic()
	}
	if l.coupledMDemandID != noID {
		return l.d.MulticastDemandByID(l.coupledMDemandID).CarriedTraffic()
	}
	return l.capacity
}

// SetCapacity sets the capacity of an uncoupled link.
func (l *Link) SetCapacity(capacity float64) error {
	const op = "SetCapacity"
	if l.d == nil {
		return domainErr(op, l, ErrElementRemoved)
	}
	if l.IsCoupled() {
		return domainErr(op, l, ErrCoupledCapacity)
	}
	if !finiteNonNegative(capacity) {
		return domainErr(op, l, ErrInvalidArgument)
	}
	if l.capacity != capacity {
		l.capacity = capacity
		l.d.touch()
	}
	return nil
}

// IsUp reports the explicit link failure state.
func (l *Link) IsUp() bool { return l.up }

// IsDown reports whether the link is explicitly failed.
func (l *Link) IsDown() bool { return !l.up }

// SetFailureState sets the link up or down.
func (l *Link) SetFailureState(up bool) error {
	if l.d == nil {
		return domainErr("SetFailureState", l, ErrElementRemoved)
	}
	if l.up != up {
		l.up = up
		l.d.touch()
	}
	return nil
}

// isTraversable reports whether traffic can flow over the link: the link
// and both end nodes are up.
func (l *Link) isTraversable() bool {
	return l.up && l.d.NodeByID(l.originID).up && l.d.NodeByID(l.destID).up
}

// CarriedTraffic returns the failure-aware traffic carried by the link.
func (l *Link) CarriedTraffic() float64 { return l.d.derived().linkCarried[l.id] }

// OccupiedCapacity returns the failure-aware capacity consumed on the link.
func (l *Link) OccupiedCapacity() float64 { return l.d.derived().linkOccupied[l.id] }

// Utilization returns occupied capacity over capacity; a zero-capacity link
// with occupation reports +Inf.
func (l *Link) Utilization() float64 {
	occ, c := l.OccupiedCapacity(), l.Capacity()
	if c == 0 {
		if occ == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return occ / c
}

// IsOversubscribed reports occupied capacity above capacity (beyond epsilon).
func (l *Link) IsOversubscribed() bool {
	return l.OccupiedCapacity() > l.Capacity()+l.d.opts.Epsilon
}

// IsCoupled reports whether the link capacity mirrors a lower-layer element.
func (l *Link) IsCoupled() bool {
	return l.coupledDemandID != noID || l.coupledMDemandID != noID
}

// CoupledDemand returns the lower-layer demand the link is coupled to.
func (l *Link) CoupledDemand() *Demand {
	if l.coupledDemandID == noID {
		return nil
	}
	return l.d.DemandByID(l.coupledDemandID)
}

// CoupledMulticastDemand returns the lower-layer multicast demand the link
// is coupled to.
func (l *Link) CoupledMulticastDemand() *MulticastDemand {
	if l.coupledMDemandID == noID {
		return nil
	}
	return l.d.MulticastDemandByID(l.coupledMDemandID)
}

// TraversingRoutes returns the routes whose path includes the link.
func (l *Link) TraversingRoutes() []*Route {
	out := make([]*Route, 0, len(l.routes))
	for _, id := range sortedKeys(l.routes) {
		out = append(out, l.d.RouteByID(id))
	}
	return out
}

// TraversingTrees returns the multicast trees whose current link set
// includes the link.
func (l *Link) TraversingTrees() []*MulticastTree {
	out := make([]*MulticastTree, 0, len(l.trees))
	for _, id := range l.trees.sorted() {
		out = append(out, l.d.MulticastTreeByID(id))
	}
	return out
}

// ForwardingRules returns the fraction forwarded over the link per demand.
func (l *Link) ForwardingRules() map[*Demand]float64 {
	out := make(map[*Demand]float64)
	for k, f := range l.Layer().rules {
		if k.link == l.id {
			out[l.d.DemandByID(k.demand)] = f
		}
	}
	return out
}

// SRGs returns the shared-risk groups containing the link.
func (l *Link) SRGs() []*SRG {
	out := make([]*SRG, 0, len(l.srgs))
	for _, id := range l.srgs.sorted() {
		out = append(out, l.d.SRGByID(id))
	}
	return out
}

// Remove deletes the link. Routes and multicast trees whose current or
// initial path contains it are removed; forwarding rules
// over it are dropped; any coupling is released.
func (l *Link) Remove() error {
	if l.d == nil {
		return domainErr("RemoveLink", l, ErrElementRemoved)
	}
	l.remove()
	return nil
}

func (l *Link) remove() {
	d := l.d
	layer := l.Layer()
	for _, id := range sortedKeys(l.routes) {
		if r := d.RouteByID(id); r != nil {
			r.remove()
		}
	}
	for i := len(layer.routes) - 1; i >= 0; i-- {
		if r := layer.routes[i]; r.initiallyTraverses(hop{id: l.id}) {
			r.remove()
		}
	}
	for i := len(layer.trees) - 1; i >= 0; i-- {
		t := layer.trees[i]
		if t.links.has(l.id) || t.initialLinks.has(l.id) {
			t.remove()
		}
	}
	for k := range layer.rules {
		if k.link == l.id {
			delete(layer.rules, k)
		}
	}
	if dem := l.CoupledDemand(); dem != nil {
		dem.coupledLinkID = noID
	}
	if md := l.CoupledMulticastDemand(); md != nil {
		for egress, lid := range md.coupledLinks {
			if lid == l.id {
				delete(md.coupledLinks, egress)
			}
		}
	}
	for _, id := range l.srgs.sorted() {
		d.SRGByID(id).links.Remove(uint64(l.id))
	}
	d.NodeByID(l.originID).outLinks.remove(l.id)
	d.NodeByID(l.destID).inLinks.remove(l.id)
	layer.links = removeFromList(layer.links, l.index)
	d.debug("link removed", logging.ElementID("link", l.id), logging.ElementID("layer", layer.id))
	d.unregister(l)
}
