package core

import (
	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/signalsfoundry/netdesign/internal/logging"
)

// SRG is a shared-risk group: nodes and links that fail together. The group
// carries no failure state of its own; failing it toggles its members.
type SRG struct {
	elementBase

	mttfHours float64
	mttrHours float64

	nodes *roaring64.Bitmap
	links *roaring64.Bitmap
}

func (*SRG) Kind() ElementKind { return KindSRG }

// AddSRG creates an empty shared-risk group with the given mean time to
// fail and mean time to repair, in hours.
func (d *Design) AddSRG(mttfHours, mttrHours float64) (*SRG, error) {
	return d.addSRG(noID, mttfHours, mttrHours)
}

func (d *Design) addSRG(id int64, mttfHours, mttrHours float64) (*SRG, error) {
	const op = "AddSRG"
	if !finiteNonNegative(mttfHours) || !finiteNonNegative(mttrHours) {
		return nil, opErr(op, ErrInvalidArgument, "mttf and mttr must be finite and non-negative")
	}
	if err := d.checkRestoredID(op, id); err != nil {
		return nil, err
	}
	s := &SRG{
		elementBase: newBase(d, d.newID(id), len(d.srgs)),
		mttfHours:   mttfHours,
		mttrHours:   mttrHours,
		nodes:       roaring64.New(),
		links:       roaring64.New(),
	}
	d.srgs = append(d.srgs, s)
	d.register(s)
	return s, nil
}

func (s *SRG) MeanTimeToFailHours() float64   { return s.mttfHours }
func (s *SRG) MeanTimeToRepairHours() float64 { return s.mttrHours }

// SetMeanTimes updates the mean time to fail and to repair.
func (s *SRG) SetMeanTimes(mttfHours, mttrHours float64) error {
	if s.d == nil {
		return domainErr("SetMeanTimes", s, ErrElementRemoved)
	}
	if !finiteNonNegative(mttfHours) || !finiteNonNegative(mttrHours) {
		return domainErr("SetMeanTimes", s, ErrInvalidArgument)
	}
	s.mttfHours, s.mttrHours = mttfHours, mttrHours
	return nil
}

// Availability returns MTTF / (MTTF + MTTR), or 1 when both are zero.
func (s *SRG) Availability() float64 {
	if s.mttfHours+s.mttrHours == 0 {
		return 1
	}
	return s.mttfHours / (s.mttfHours + s.mttrHours)
}

// AddNode makes n a member of the group.
func (s *SRG) AddNode(n *Node) error {
	if err := s.checkMember("AddNode", n); err != nil {
		return err
	}
	s.nodes.Add(uint64(n.id))
	n.srgs.add(s.id)
	s.d.touch()
	return nil
}

// AddLink makes l a member of the group.
func (s *SRG) AddLink(l *Link) error {
	if err := s.checkMember("AddLink", l); err != nil {
		return err
	}
	s.links.Add(uint64(l.id))
	l.srgs.add(s.id)
	s.d.touch()
	return nil
}

// RemoveNode drops n from the group.
func (s *SRG) RemoveNode(n *Node) error {
	if err := s.checkMember("RemoveNode", n); err != nil {
		return err
	}
	s.nodes.Remove(uint64(n.id))
	n.srgs.remove(s.id)
	s.d.touch()
	return nil
}

// RemoveLink drops l from the group.
func (s *SRG) RemoveLink(l *Link) error {
	if err := s.checkMember("RemoveLink", l); err != nil {
		return err
	}
	s.links.Remove(uint64(l.id))
	l.srgs.remove(s.id)
	s.d.touch()
	return nil
}

func (s *SRG) checkMember(op string, e Element) error {
	if s.d == nil {
		return domainErr(op, s, ErrElementRemoved)
	}
	return s.d.owns(op, e)
}

// HasNode reports whether n is a member.
func (s *SRG) HasNode(n *Node) bool { return n != nil && s.nodes.Contains(uint64(n.id)) }

// HasLink reports whether l is a member.
func (s *SRG) HasLink(l *Link) bool { return l != nil && s.links.Contains(uint64(l.id)) }

// Nodes returns the member nodes ordered by id.
func (s *SRG) Nodes() []*Node {
	out := make([]*Node, 0, s.nodes.GetCardinality())
	for _, id := range s.nodes.ToArray() {
		out = append(out, s.d.NodeByID(int64(id)))
	}
	return out
}

// Links returns the member links ordered by id.
func (s *SRG) Links() []*Link {
	out := make([]*Link, 0, s.links.GetCardinality())
	for _, id := range s.links.ToArray() {
		out = append(out, s.d.LinkByID(int64(id)))
	}
	return out
}

// LinksAllLayers returns the member links plus the links incident to member
// nodes, which fail with them.
func (s *SRG) LinksAllLayers() []*Link {
	ids := newIDSet()
	for _, id := range s.links.ToArray() {
		ids.add(int64(id))
	}
	for _, n := range s.Nodes() {
		for id := range n.outLinks {
			ids.add(id)
		}
		for id := range n.inLinks {
			ids.add(id)
		}
	}
	out := make([]*Link, 0, len(ids))
	for _, id := range ids.sorted() {
		out = append(out, s.d.LinkByID(id))
	}
	return out
}

// SetAsFailed sets every member node and link down in one step.
func (s *SRG) SetAsFailed() error {
	if s.d == nil {
		return domainErr("SetAsFailed", s, ErrElementRemoved)
	}
	return s.d.SetLinksAndNodesFailureState(nil, s.Links(), nil, s.Nodes())
}

// SetAsRepaired sets every member node and link up in one step.
func (s *SRG) SetAsRepaired() error {
	if s.d == nil {
		return domainErr("SetAsRepaired", s, ErrElementRemoved)
	}
	return s.d.SetLinksAndNodesFailureState(s.Links(), nil, s.Nodes(), nil)
}

// IsFullyDown reports whether every member is down. An empty group is never
// down.
func (s *SRG) IsFullyDown() bool {
	if s.d == nil || (s.nodes.IsEmpty() && s.links.IsEmpty()) {
		return false
	}
	for _, n := range s.Nodes() {
		if n.up {
			return false
		}
	}
	for _, l := range s.Links() {
		if l.up {
			return false
		}
	}
	return true
}

// AffectedRoutes returns the routes that go down when the group fails.
func (s *SRG) AffectedRoutes() []*Route {
	var out []*Route
	for _, l := range s.d.layers {
		for _, r := range l.routes {
			if s.touchesRoute(r) {
				out = append(out, r)
			}
		}
	}
	return out
}

// AffectedTrees returns the multicast trees that go down when the group
// fails.
func (s *SRG) AffectedTrees() []*MulticastTree {
	var out []*MulticastTree
	for _, l := range s.d.layers {
		for _, t := range l.trees {
			if s.touchesTree(t) {
				out = append(out, t)
			}
		}
	}
	return out
}

func (s *SRG) touchesLink(l *Link) bool {
	return s.links.Contains(uint64(l.id)) ||
		s.nodes.Contains(uint64(l.originID)) ||
		s.nodes.Contains(uint64(l.destID))
}

func (s *SRG) touchesRoute(r *Route) bool {
	if s.nodes.Contains(uint64(r.d.DemandByID(r.demandID).ingressID)) {
		return true
	}
	for _, h := range r.hops {
		if h.resource {
			if s.nodes.Contains(uint64(r.d.ResourceByID(h.id).hostID)) {
				return true
			}
		} else if s.touchesLink(r.d.LinkByID(h.id)) {
			return true
		}
	}
	return false
}

func (s *SRG) touchesTree(t *MulticastTree) bool {
	if s.nodes.Contains(uint64(t.d.MulticastDemandByID(t.demandID).ingressID)) {
		return true
	}
	for id := range t.links {
		if s.touchesLink(t.d.LinkByID(id)) {
			return true
		}
	}
	return false
}

// AffectingSRGs returns the groups containing at least one of links.
func (d *Design) AffectingSRGs(links []*Link) []*SRG {
	set := newIDSet()
	for _, l := range links {
		if l != nil && l.d == d {
			set.add(l.id)
		}
	}
	return d.srgsTouching(set, newIDSet())
}

// srgsTouching returns the groups containing any of the link or node ids.
func (d *Design) srgsTouching(links, nodes idSet) []*SRG {
	var out []*SRG
	for _, s := range d.srgs {
		if containsAny(s.links, links) || containsAny(s.nodes, nodes) {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(b *roaring64.Bitmap, ids idSet) bool {
	for id := range ids {
		if b.Contains(uint64(id)) {
			return true
		}
	}
	return false
}

// Remove deletes the group; its members are unaffected.
func (s *SRG) Remove() error {
	if s.d == nil {
		return domainErr("RemoveSRG", s, ErrElementRemoved)
	}
	d := s.d
	for _, n := range s.Nodes() {
		n.srgs.remove(s.id)
	}
	for _, l := range s.Links() {
		l.srgs.remove(s.id)
	}
	d.srgs = removeFromList(d.srgs, s.index)
	d.debug("srg removed", logging.ElementID("srg", s.id))
	d.unregister(s)
	return nil
}
