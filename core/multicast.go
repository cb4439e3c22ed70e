package core

import (
	"math"

	"github.com/signalsfoundry/netdesign/internal/logging"
)

// MulticastDemand is a point-to-multipoint traffic request of one layer.
type MulticastDemand struct {
	elementBase

	layerID   int64
	ingressID int64
	egress    idSet
	offered   float64

	trees        idSet
	coupledLinks map[int64]int64 // egress node id -> upper layer link id
}

func (*MulticastDemand) Kind() ElementKind { return KindMulticastDemand }

// AddMulticastDemand creates a multicast demand from ingress to every egress
// node in layer (the default layer when nil).
func (d *Design) AddMulticastDemand(ingress *Node, egress []*Node, offered float64, layer *Layer) (*MulticastDemand, error) {
	if layer == nil {
		layer = d.DefaultLayer()
	}
	return d.addMulticastDemand(noID, ingress, egress, offered, layer)
}

func (d *Design) addMulticastDemand(id int64, ingress *Node, egress []*Node, offered float64, layer *Layer) (*MulticastDemand, error) {
	const op = "AddMulticastDemand"
	if err := d.owns(op, ingress); err != nil {
		return nil, err
	}
	if err := d.owns(op, layer); err != nil {
		return nil, err
	}
	if len(egress) == 0 {
		return nil, opErr(op, ErrInvalidArgument, "no egress nodes")
	}
	set := newIDSet()
	for _, n := range egress {
		if err := d.owns(op, n); err != nil {
			return nil, err
		}
		if n == ingress {
			return nil, opErr(op, ErrInvalidArgument, "ingress node %d is also an egress node", n.id)
		}
		if set.has(n.id) {
			return nil, opErr(op, ErrInvalidArgument, "egress node %d repeated", n.id)
		}
		set.add(n.id)
	}
	if !finiteNonNegative(offered) {
		return nil, opErr(op, ErrInvalidArgument, "offered traffic must be finite and non-negative, got %v", offered)
	}
	if err := d.checkRestoredID(op, id); err != nil {
		return nil, err
	}
	md := &MulticastDemand{
		elementBase:  newBase(d, d.newID(id), len(layer.mdemands)),
		layerID:      layer.id,
		ingressID:    ingress.id,
		egress:       set,
		offered:      offered,
		trees:        newIDSet(),
		coupledLinks: make(map[int64]int64),
	}
	layer.mdemands = append(layer.mdemands, md)
	d.register(md)
	return md, nil
}

func (md *MulticastDemand) Layer() *Layer           { return md.d.LayerByID(md.layerID) }
func (md *MulticastDemand) IngressNode() *Node      { return md.d.NodeByID(md.ingressID) }
func (md *MulticastDemand) OfferedTraffic() float64 { return md.offered }

// EgressNodes returns the egress nodes ordered by id.
func (md *MulticastDemand) EgressNodes() []*Node {
	out := make([]*Node, 0, len(md.egress))
	for _, id := range md.egress.sorted() {
		out = append(out, md.d.NodeByID(id))
	}
	return out
}

// SetOfferedTraffic updates the offered traffic.
func (md *MulticastDemand) SetOfferedTraffic(v float64) error {
	if md.d == nil {
		return domainErr("SetOfferedTraffic", md, ErrElementRemoved)
	}
	if !finiteNonNegative(v) {
		return domainErr("SetOfferedTraffic", md, ErrInvalidArgument)
	}
	if md.offered != v {
		md.offered = v
		md.d.touch()
	}
	return nil
}

// MulticastTrees returns the trees of the demand ordered by id.
func (md *MulticastDemand) MulticastTrees() []*MulticastTree {
	out := make([]*MulticastTree, 0, len(md.trees))
	for _, id := range md.trees.sorted() {
		out = append(out, md.d.MulticastTreeByID(id))
	}
	return out
}

// CarriedTraffic returns the carried traffic summed over the up trees.
func (md *MulticastDemand) CarriedTraffic() float64 {
	return md.d.derived().mdemandCarried[md.id]
}

// BlockedTraffic returns offered minus carried traffic, floored at zero.
func (md *MulticastDemand) BlockedTraffic() float64 {
	return math.Max(0, md.offered-md.CarriedTraffic())
}

// IsCoupled reports whether upper-layer links mirror this demand.
func (md *MulticastDemand) IsCoupled() bool { return len(md.coupledLinks) > 0 }

// CoupledLinks returns the upper-layer links coupled to the demand, ordered
// by egress node id.
func (md *MulticastDemand) CoupledLinks() []*Link {
	out := make([]*Link, 0, len(md.coupledLinks))
	for _, egress := range sortedKeys(md.coupledLinks) {
		out = append(out, md.d.LinkByID(md.coupledLinks[egress]))
	}
	return out
}

// CoupleToUpperLayerLinks couples one upper-layer link per egress node. Each
// link must go from the ingress node to a distinct egress node, in one
// other layer, and be uncoupled.
func (md *MulticastDemand) CoupleToUpperLayerLinks(links []*Link) error {
	const op = "CoupleToUpperLayerLinks"
	if md.d == nil {
		return domainErr(op, md, ErrElementRemoved)
	}
	d := md.d
	if md.IsCoupled() {
		return opErr(op, ErrCoupling, "multicast demand %d already coupled", md.id)
	}
	if len(links) != len(md.egress) {
		return opErr(op, ErrCoupling, "%d links for %d egress nodes", len(links), len(md.egress))
	}
	byEgress := make(map[int64]int64, len(links))
	for _, l := range links {
		if err := d.owns(op, l); err != nil {
			return err
		}
		if l.originID != md.ingressID || !md.egress.has(l.destID) {
			return opErr(op, ErrCoupling, "link %d does not join the ingress to an egress node", l.id)
		}
		if _, dup := byEgress[l.destID]; dup {
			return opErr(op, ErrCoupling, "two links reach egress node %d", l.destID)
		}
		if l.layerID != links[0].layerID {
			return opErr(op, ErrCoupling, "links span several layers")
		}
		if err := d.checkCoupling(op, md.layerID, l); err != nil {
			return err
		}
		byEgress[l.destID] = l.id
	}
	for egress, lid := range byEgress {
		md.coupledLinks[egress] = lid
		d.LinkByID(lid).coupledMDemandID = md.id
	}
	d.touch()
	return nil
}

// Decouple releases every coupled link; each keeps the capacity it mirrored.
func (md *MulticastDemand) Decouple() error {
	if md.d == nil {
		return domainErr("Decouple", md, ErrElementRemoved)
	}
	md.decouple()
	return nil
}

func (md *MulticastDemand) decouple() {
	if !md.IsCoupled() {
		return
	}
	carried := md.CarriedTraffic()
	for egress, lid := range md.coupledLinks {
		l := md.d.LinkByID(lid)
		l.capacity = carried
		l.coupledMDemandID = noID
		delete(md.coupledLinks, egress)
	}
	md.d.touch()
}

// Remove deletes the multicast demand and its trees.
func (md *MulticastDemand) Remove() error {
	if md.d == nil {
		return domainErr("RemoveMulticastDemand", md, ErrElementRemoved)
	}
	md.remove()
	return nil
}

func (md *MulticastDemand) remove() {
	d := md.d
	layer := md.Layer()
	md.decouple()
	for _, id := range md.trees.sorted() {
		if t := d.MulticastTreeByID(id); t != nil {
			t.remove()
		}
	}
	layer.mdemands = removeFromList(layer.mdemands, md.index)
	d.debug("multicast demand removed", logging.ElementID("multicast_demand", md.id))
	d.unregister(md)
}

// MulticastTree is an explicit set of links delivering a multicast demand.
type MulticastTree struct {
	elementBase

	layerID  int64
	demandID int64

	links        idSet
	initialLinks idSet
	carried      float64
	occupied     float64
}

func (*MulticastTree) Kind() ElementKind { return KindMulticastTree }

// AddMulticastTree creates a tree for md over links, carrying carried
// traffic and occupying occupied capacity on each link. The links must form
// an arborescence rooted at the demand ingress that reaches at least one
// egress node.
func (d *Design) AddMulticastTree(md *MulticastDemand, carried, occupied float64, links []*Link) (*MulticastTree, error) {
	return d.addMulticastTree(noID, md, carried, occupied, links, links)
}

func (d *Design) addMulticastTree(id int64, md *MulticastDemand, carried, occupied float64, links, initial []*Link) (*MulticastTree, error) {
	const op = "AddMulticastTree"
	if err := d.owns(op, md); err != nil {
		return nil, err
	}
	if !finiteNonNegative(carried) || !finiteNonNegative(occupied) {
		return nil, opErr(op, ErrInvalidArgument, "carried and occupied must be finite and non-negative")
	}
	set, err := md.validateTree(op, links)
	if err != nil {
		return nil, err
	}
	initialSet, err := md.validateTree(op, initial)
	if err != nil {
		return nil, err
	}
	if err := d.checkRestoredID(op, id); err != nil {
		return nil, err
	}
	layer := md.Layer()
	t := &MulticastTree{
		elementBase:  newBase(d, d.newID(id), len(layer.trees)),
		layerID:      layer.id,
		demandID:     md.id,
		links:        set,
		initialLinks: initialSet,
		carried:      carried,
		occupied:     occupied,
	}
	layer.trees = append(layer.trees, t)
	md.trees.add(t.id)
	t.attachLinks()
	d.register(t)
	return t, nil
}

// validateTree checks that links form an arborescence rooted at the
// ingress node reaching at least one egress node.
func (md *MulticastDemand) validateTree(op string, links []*Link) (idSet, error) {
	d := md.d
	if len(links) == 0 {
		return nil, opErr(op, ErrTreeShape, "empty link set")
	}
	set := newIDSet()
	parent := make(map[int64]int64) // node -> incoming link
	children := make(map[int64][]*Link)
	for _, l := range links {
		if err := d.owns(op, l); err != nil {
			return nil, err
		}
		if l.layerID != md.layerID {
			return nil, domainErr(op, l, ErrLayerMismatch)
		}
		if set.has(l.id) {
			return nil, opErr(op, ErrTreeShape, "link %d repeated", l.id)
		}
		if l.destID == md.ingressID {
			return nil, opErr(op, ErrTreeShape, "link %d enters the ingress node", l.id)
		}
		if _, dup := parent[l.destID]; dup {
			return nil, opErr(op, ErrTreeShape, "node %d has two incoming links", l.destID)
		}
		set.add(l.id)
		parent[l.destID] = l.id
		children[l.originID] = append(children[l.originID], l)
	}
	reached := newIDSet(md.ingressID)
	stack := []int64{md.ingressID}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, l := range children[n] {
			reached.add(l.destID)
			stack = append(stack, l.destID)
		}
	}
	for _, l := range links {
		if !reached.has(l.destID) {
			return nil, opErr(op, ErrTreeShape, "link %d is not reachable from the ingress node", l.id)
		}
	}
	for id := range md.egress {
		if reached.has(id) {
			return set, nil
		}
	}
	return nil, opErr(op, ErrTreeShape, "no egress node reached")
}

func (t *MulticastTree) attachLinks() {
	for id := range t.links {
		t.d.LinkByID(id).trees.add(t.id)
	}
}

func (t *MulticastTree) detachLinks() {
	for id := range t.links {
		t.d.LinkByID(id).trees.remove(t.id)
	}
}

func (t *MulticastTree) Layer() *Layer                     { return t.d.LayerByID(t.layerID) }
func (t *MulticastTree) MulticastDemand() *MulticastDemand { return t.d.MulticastDemandByID(t.demandID) }
func (t *MulticastTree) IngressNode() *Node                { return t.MulticastDemand().IngressNode() }
func (t *MulticastTree) NumberOfLinks() int                { return len(t.links) }

// LinkSet returns the current links ordered by id.
func (t *MulticastTree) LinkSet() []*Link { return t.resolve(t.links) }

// InitialLinkSet returns the links the tree was created with. It never
// changes during the tree lifetime.
func (t *MulticastTree) InitialLinkSet() []*Link { return t.resolve(t.initialLinks) }

func (t *MulticastTree) resolve(set idSet) []*Link {
	out := make([]*Link, 0, len(set))
	for _, id := range set.sorted() {
		out = append(out, t.d.LinkByID(id))
	}
	return out
}

// NodeSet returns the ingress node and every node reached by the tree.
func (t *MulticastTree) NodeSet() []*Node {
	ids := newIDSet(t.MulticastDemand().ingressID)
	for id := range t.links {
		ids.add(t.d.LinkByID(id).destID)
	}
	out := make([]*Node, 0, len(ids))
	for _, id := range ids.sorted() {
		out = append(out, t.d.NodeByID(id))
	}
	return out
}

// EgressNodesReached returns the demand egress nodes the tree reaches.
func (t *MulticastTree) EgressNodesReached() []*Node {
	md := t.MulticastDemand()
	var out []*Node
	for _, id := range md.egress.sorted() {
		for lid := range t.links {
			if t.d.LinkByID(lid).destID == id {
				out = append(out, t.d.NodeByID(id))
				break
			}
		}
	}
	return out
}

// SeqLinksToEgress returns the tree path from the ingress to egress, or nil
// when the tree does not reach it.
func (t *MulticastTree) SeqLinksToEgress(egress *Node) []*Link {
	if t.d == nil || egress == nil {
		return nil
	}
	incoming := make(map[int64]*Link)
	for id := range t.links {
		l := t.d.LinkByID(id)
		incoming[l.destID] = l
	}
	var path []*Link
	for at := egress.id; at != t.MulticastDemand().ingressID; {
		l, ok := incoming[at]
		if !ok {
			return nil
		}
		path = append([]*Link{l}, path...)
		at = l.originID
	}
	return path
}

// SetLinks replaces the current link set. The initial set is unchanged.
func (t *MulticastTree) SetLinks(links []*Link) error {
	const op = "SetLinks"
	if t.d == nil {
		return domainErr(op, t, ErrElementRemoved)
	}
	set, err := t.MulticastDemand().validateTree(op, links)
	if err != nil {
		return err
	}
	t.detachLinks()
	t.links = set
	t.attachLinks()
	t.d.touch()
	return nil
}

// RevertToInitialSetOfLinks restores the link set the tree was created with.
func (t *MulticastTree) RevertToInitialSetOfLinks() error {
	if t.d == nil {
		return domainErr("RevertToInitialSetOfLinks", t, ErrElementRemoved)
	}
	t.detachLinks()
	t.links = t.initialLinks.clone()
	t.attachLinks()
	t.d.touch()
	return nil
}

// IsDown reports whether any tree link, or a node it touches, is down.
func (t *MulticastTree) IsDown() bool { return t.d.derived().treeDown[t.id] }

// CarriedTraffic returns the carried traffic, zero while the tree is down.
func (t *MulticastTree) CarriedTraffic() float64 {
	if t.d == nil || t.IsDown() {
		return 0
	}
	return t.carried
}

// CarriedTrafficInNoFailureState returns the last explicitly set carried
// traffic regardless of failures.
func (t *MulticastTree) CarriedTrafficInNoFailureState() float64 { return t.carried }

// OccupiedLinkCapacity returns the capacity occupied on each tree link, zero
// while the tree is down.
func (t *MulticastTree) OccupiedLinkCapacity() float64 {
	if t.d == nil || t.IsDown() {
		return 0
	}
	return t.occupied
}

// OccupiedLinkCapacityInNoFailureState returns the declared occupation.
func (t *MulticastTree) OccupiedLinkCapacityInNoFailureState() float64 { return t.occupied }

// SetCarriedTraffic updates carried traffic and per-link occupation.
func (t *MulticastTree) SetCarriedTraffic(carried, occupied float64) error {
	if t.d == nil {
		return domainErr("SetCarriedTraffic", t, ErrElementRemoved)
	}
	if !finiteNonNegative(carried) || !finiteNonNegative(occupied) {
		return domainErr("SetCarriedTraffic", t, ErrInvalidArgument)
	}
	t.carried = carried
	t.occupied = occupied
	t.d.touch()
	return nil
}

// SRGs returns the shared-risk groups containing any tree link or any node
// the tree touches.
func (t *MulticastTree) SRGs() []*SRG {
	if t.d == nil {
		return nil
	}
	links, nodes := newIDSet(), newIDSet(t.MulticastDemand().ingressID)
	for id := range t.links {
		l := t.d.LinkByID(id)
		links.add(id)
		nodes.add(l.originID)
		nodes.add(l.destID)
	}
	return t.d.srgsTouching(links, nodes)
}

// Remove deletes the tree.
func (t *MulticastTree) Remove() error {
	if t.d == nil {
		return domainErr("RemoveMulticastTree", t, ErrElementRemoved)
	}
	t.remove()
	return nil
}

func (t *MulticastTree) remove() {
	d := t.d
	t.detachLinks()
	d.MulticastDemandByID(t.demandID).trees.remove(t.id)
	layer := t.Layer()
	layer.trees = removeFromList(layer.trees, t.index)
	d.debug("multicast tree removed", logging.ElementID("multicast_tree", t.id))
	d.unregister(t)
}

// treeDown evaluates the failure state of t.
func (d *Design) treeDown(t *MulticastTree) bool {
	if !d.NodeByID(d.MulticastDemandByID(t.demandID).ingressID).up {
		return true
	}
	for id := range t.links {
		if !d.LinkByID(id).isTraversable() {
			return true
		}
	}
	return false
}
