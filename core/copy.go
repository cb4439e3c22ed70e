package core

import (
	"fmt"
	"maps"
	"slices"
)

// Copy returns a structurally identical design sharing no mutable state with
// d. Ids, indices, attributes and failure states are preserved; the copy
// gets a fresh InstanceID.
func (d *Design) Copy() *Design {
	c := newEmpty()
	c.log = d.log
	d.copyInto(c)
	return c
}

// AssignFrom replaces the content of d with a copy of other. Element handles
// previously obtained from d report IsRemoved afterwards.
func (d *Design) AssignFrom(other *Design) error {
	if other == nil {
		return opErr("AssignFrom", ErrInvalidArgument, "nil design")
	}
	if other == d {
		return nil
	}
	for _, e := range d.elements {
		e.base().d = nil
	}
	epoch := d.epoch
	id := d.instanceID
	log := d.log
	*d = *newEmpty()
	d.instanceID = id
	d.log = log
	other.copyInto(d)
	d.epoch = epoch + 1
	return nil
}

// copyInto fills the empty design dst with clones of every element of d,
// owned by dst.
func (d *Design) copyInto(dst *Design) {
	dst.name = d.name
	dst.description = d.description
	dst.attrs = maps.Clone(d.attrs)
	dst.opts = d.opts
	dst.nextID = d.nextID
	dst.defaultLayerID = d.defaultLayerID

	for _, n := range d.nodes {
		c := &Node{
			elementBase: n.cloneBase(dst),
			name:        n.name,
			positions:   maps.Clone(n.positions),
			up:          n.up,
			outLinks:    n.outLinks.clone(),
			inLinks:     n.inLinks.clone(),
			resources:   n.resources.clone(),
			srgs:        n.srgs.clone(),
		}
		dst.nodes = append(dst.nodes, c)
		dst.elements[c.id] = c
	}
	for _, r := range d.resources {
		c := &Resource{
			elementBase:      r.cloneBase(dst),
			typ:              r.typ,
			name:             r.name,
			hostID:           r.hostID,
			capacity:         r.capacity,
			units:            r.units,
			processingTimeMs: r.processingTimeMs,
			bases:            maps.Clone(r.bases),
			uppers:           r.uppers.clone(),
			routes:           maps.Clone(r.routes),
		}
		dst.resources = append(dst.resources, c)
		dst.elements[c.id] = c
	}
	for _, s := range d.srgs {
		c := &SRG{
			elementBase: s.cloneBase(dst),
			mttfHours:   s.mttfHours,
			mttrHours:   s.mttrHours,
			nodes:       s.nodes.Clone(),
			links:       s.links.Clone(),
		}
		dst.srgs = append(dst.srgs, c)
		dst.elements[c.id] = c
	}
	for _, l := range d.layers {
		dst.layers = append(dst.layers, l.cloneInto(dst))
	}
}

func (l *Layer) cloneInto(dst *Design) *Layer {
	c := &Layer{
		elementBase:   l.cloneBase(dst),
		name:          l.name,
		description:   l.description,
		demandUnits:   l.demandUnits,
		capacityUnits: l.capacityUnits,
		routingType:   l.routingType,
		router:        l.router,
		rules:         maps.Clone(l.rules),
	}
	dst.elements[c.id] = c
	for _, link := range l.links {
		cl := &Link{
			elementBase:      link.cloneBase(dst),
			layerID:          link.layerID,
			originID:         link.originID,
			destID:           link.destID,
			capacity:         link.capacity,
			lengthKm:         link.lengthKm,
			propSpeed:        link.propSpeed,
			up:               link.up,
			coupledDemandID:  link.coupledDemandID,
			coupledMDemandID: link.coupledMDemandID,
			routes:           cloneCounts(link.routes),
			trees:            link.trees.clone(),
			srgs:             link.srgs.clone(),
		}
		c.links = append(c.links, cl)
		dst.elements[cl.id] = cl
	}
	for _, dem := range l.demands {
		cd := &Demand{
			elementBase:   dem.cloneBase(dst),
			layerID:       dem.layerID,
			ingressID:     dem.ingressID,
			egressID:      dem.egressID,
			offered:       dem.offered,
			serviceChain:  slices.Clone(dem.serviceChain),
			maxLatencyMs:  dem.maxLatencyMs,
			routes:        dem.routes.clone(),
			coupledLinkID: dem.coupledLinkID,
		}
		c.demands = append(c.demands, cd)
		dst.elements[cd.id] = cd
	}
	for _, r := range l.routes {
		cr := &Route{
			elementBase:       r.cloneBase(dst),
			layerID:           r.layerID,
			demandID:          r.demandID,
			hops:              slices.Clone(r.hops),
			occupation:        slices.Clone(r.occupation),
			carried:           r.carried,
			initialHops:       slices.Clone(r.initialHops),
			initialOccupation: slices.Clone(r.initialOccupation),
			initialCarried:    r.initialCarried,
			backups:           slices.Clone(r.backups),
			primaries:         r.primaries.clone(),
		}
		c.routes = append(c.routes, cr)
		dst.elements[cr.id] = cr
	}
	for _, md := range l.mdemands {
		cm := &MulticastDemand{
			elementBase:  md.cloneBase(dst),
			layerID:      md.layerID,
			ingressID:    md.ingressID,
			egress:       md.egress.clone(),
			offered:      md.offered,
			trees:        md.trees.clone(),
			coupledLinks: maps.Clone(md.coupledLinks),
		}
		c.mdemands = append(c.mdemands, cm)
		dst.elements[cm.id] = cm
	}
	for _, t := range l.trees {
		ct := &MulticastTree{
			elementBase:  t.cloneBase(dst),
			layerID:      t.layerID,
			demandID:     t.demandID,
			links:        t.links.clone(),
			initialLinks: t.initialLinks.clone(),
			carried:      t.carried,
			occupied:     t.occupied,
		}
		c.trees = append(c.trees, ct)
		dst.elements[ct.id] = ct
	}
	return c
}

// IsDeepCopy reports whether o is structurally identical to d: same ids,
// indices, attributes, parameters, relationships and failure states.
// Instance identity is ignored.
func (d *Design) IsDeepCopy(o *Design) bool {
	return d.deepCopyDiff(o) == nil
}

// deepCopyDiff returns the first structural difference between d and o.
func (d *Design) deepCopyDiff(o *Design) error {
	if o == nil {
		return fmt.Errorf("other design is nil")
	}
	switch {
	case d.name != o.name || d.description != o.description:
		return fmt.Errorf("name or description differ")
	case !maps.Equal(d.attrs, o.attrs):
		return fmt.Errorf("design attributes differ")
	case d.opts != o.opts:
		return fmt.Errorf("options differ: %+v vs %+v", d.opts, o.opts)
	case d.nextID != o.nextID:
		return fmt.Errorf("next id %d vs %d", d.nextID, o.nextID)
	case d.defaultLayerID != o.defaultLayerID:
		return fmt.Errorf("default layer %d vs %d", d.defaultLayerID, o.defaultLayerID)
	case len(d.elements) != len(o.elements):
		return fmt.Errorf("%d elements vs %d", len(d.elements), len(o.elements))
	}
	if err := diffLists(d.nodes, o.nodes, (*Node).sameAs); err != nil {
		return err
	}
	if err := diffLists(d.resources, o.resources, (*Resource).sameAs); err != nil {
		return err
	}
	if err := diffLists(d.srgs, o.srgs, (*SRG).sameAs); err != nil {
		return err
	}
	return diffLists(d.layers, o.layers, (*Layer).sameAs)
}

func diffLists[T Element](a, b []T, same func(T, T) bool) error {
	if len(a) != len(b) {
		return fmt.Errorf("%d vs %d elements in list", len(a), len(b))
	}
	for i := range a {
		if !same(a[i], b[i]) {
			return fmt.Errorf("%s %d differs", a[i].Kind(), a[i].ID())
		}
	}
	return nil
}

func (n *Node) sameAs(o *Node) bool {
	return n.sameBase(&o.elementBase) &&
		n.name == o.name &&
		maps.Equal(n.positions, o.positions) &&
		n.up == o.up &&
		n.outLinks.equal(o.outLinks) &&
		n.inLinks.equal(o.inLinks) &&
		n.resources.equal(o.resources) &&
		n.srgs.equal(o.srgs)
}

func (r *Resource) sameAs(o *Resource) bool {
	return r.sameBase(&o.elementBase) &&
		r.typ == o.typ &&
		r.name == o.name &&
		r.hostID == o.hostID &&
		r.capacity == o.capacity &&
		r.units == o.units &&
		r.processingTimeMs == o.processingTimeMs &&
		maps.Equal(r.bases, o.bases) &&
		r.uppers.equal(o.uppers) &&
		maps.Equal(r.routes, o.routes)
}

func (s *SRG) sameAs(o *SRG) bool {
	return s.sameBase(&o.elementBase) &&
		s.mttfHours == o.mttfHours &&
		s.mttrHours == o.mttrHours &&
		s.nodes.Equals(o.nodes) &&
		s.links.Equals(o.links)
}

func (l *Layer) sameAs(o *Layer) bool {
	if !l.sameBase(&o.elementBase) ||
		l.name != o.name ||
		l.description != o.description ||
		l.demandUnits != o.demandUnits ||
		l.capacityUnits != o.capacityUnits ||
		l.routingType != o.routingType ||
		!maps.Equal(l.rules, o.rules) {
		return false
	}
	return diffLists(l.links, o.links, (*Link).sameAs) == nil &&
		diffLists(l.demands, o.demands, (*Demand).sameAs) == nil &&
		diffLists(l.routes, o.routes, (*Route).sameAs) == nil &&
		diffLists(l.mdemands, o.mdemands, (*MulticastDemand).sameAs) == nil &&
		diffLists(l.trees, o.trees, (*MulticastTree).sameAs) == nil
}

func (l *Link) sameAs(o *Link) bool {
	return l.sameBase(&o.elementBase) &&
		l.layerID == o.layerID &&
		l.originID == o.originID &&
		l.destID == o.destID &&
		l.capacity == o.capacity &&
		l.lengthKm == o.lengthKm &&
		l.propSpeed == o.propSpeed &&
		l.up == o.up &&
		l.coupledDemandID == o.coupledDemandID &&
		l.coupledMDemandID == o.coupledMDemandID &&
		maps.Equal(l.routes, o.routes) &&
		l.trees.equal(o.trees) &&
		l.srgs.equal(o.srgs)
}

func (dem *Demand) sameAs(o *Demand) bool {
	return dem.sameBase(&o.elementBase) &&
		dem.layerID == o.layerID &&
		dem.ingressID == o.ingressID &&
		dem.egressID == o.egressID &&
		dem.offered == o.offered &&
		slices.Equal(dem.serviceChain, o.serviceChain) &&
		dem.maxLatencyMs == o.maxLatencyMs &&
		dem.routes.equal(o.routes) &&
		dem.coupledLinkID == o.coupledLinkID
}

func (r *Route) sameAs(o *Route) bool {
	return r.sameBase(&o.elementBase) &&
		r.layerID == o.layerID &&
		r.demandID == o.demandID &&
		slices.Equal(r.hops, o.hops) &&
		slices.Equal(r.occupation, o.occupation) &&
		r.carried == o.carried &&
		slices.Equal(r.initialHops, o.initialHops) &&
		slices.Equal(r.initialOccupation, o.initialOccupation) &&
		r.initialCarried == o.initialCarried &&
		slices.Equal(r.backups, o.backups) &&
		r.primaries.equal(o.primaries)
}

func (md *MulticastDemand) sameAs(o *MulticastDemand) bool {
	return md.sameBase(&o.elementBase) &&
		md.layerID == o.layerID &&
		md.ingressID == o.ingressID &&
		md.egress.equal(o.egress) &&
		md.offered == o.offered &&
		md.trees.equal(o.trees) &&
		maps.Equal(md.coupledLinks, o.coupledLinks)
}

func (t *MulticastTree) sameAs(o *MulticastTree) bool {
	return t.sameBase(&o.elementBase) &&
		t.layerID == o.layerID &&
		t.demandID == o.demandID &&
		t.links.equal(o.links) &&
		t.initialLinks.equal(o.initialLinks) &&
		t.carried == o.carried &&
		t.occupied == o.occupied
}
