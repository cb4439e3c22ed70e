package core

import (
	"maps"

	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/model"
)

// Node is a point of the network. Nodes belong to the whole design, not to
// a layer; their links are indexed per node across every layer.
type Node struct {
	elementBase

	name      string
	positions map[string]model.Point
	up        bool

	outLinks  idSet
	inLinks   idSet
	resources idSet
	srgs      idSet
}

func (*Node) Kind() ElementKind { return KindNode }

// AddNode creates an up node positioned at pos in the default layout.
func (d *Design) AddNode(name string, pos model.Point) (*Node, error) {
	return d.addNode(noID, name, map[string]model.Point{model.DefaultLayout: pos}, true)
}

func (d *Design) addNode(id int64, name string, positions map[string]model.Point, up bool) (*Node, error) {
	if err := d.checkRestoredID("AddNode", id); err != nil {
		return nil, err
	}
	n := &Node{
		elementBase: newBase(d, d.newID(id), len(d.nodes)),
		name:        name,
		positions:   make(map[string]model.Point, len(positions)),
		up:          up,
		outLinks:    newIDSet(),
		inLinks:     newIDSet(),
		resources:   newIDSet(),
		srgs:        newIDSet(),
	}
	maps.Copy(n.positions, positions)
	d.nodes = append(d.nodes, n)
	d.register(n)
	return n, nil
}

func (n *Node) Name() string        { return n.name }
// SetName renames the node.
func (n *Node) SetName(name string) error {
	if n.d == nil {
		return domainErr("SetName", n, ErrElementRemoved)
	}
	n.name = name
	return nil
}

// Position returns the node position in the default layout.
func (n *Node) Position() model.Point { return n.positions[model.DefaultLayout] }

// PositionIn returns the node position in the named layout.
func (n *Node) PositionIn(layout string) (model.Point, bool) {
	p, ok := n.positions[layout]
	return p, ok
}

// Layouts returns a copy of every layout position of the node.
func (n *Node) Layouts() map[string]model.Point { return maps.Clone(n.positions) }

// SetPosition sets the position in the named layout ("" is the default one).
func (n *Node) SetPosition(layout string, p model.Point) error {
	if n.d == nil {
		return domainErr("SetPosition", n, ErrElementRemoved)
	}
	if layout == "" {
		layout = model.DefaultLayout
	}
	n.positions[layout] = p
	return nil
}

// IsUp reports the node failure state.
func (n *Node) IsUp() bool { return n.up }

// IsDown reports whether the node is failed.
func (n *Node) IsDown() bool { return !n.up }

// SetFailureState sets the node up or down. Every route, tree and hop-by-hop
// flow traversing the node is re-evaluated on next read.
func (n *Node) SetFailureState(up bool) error {
	if n.d == nil {
		return domainErr("SetFailureState", n, ErrElementRemoved)
	}
	if n.up != up {
		n.up = up
		n.d.touch()
	}
	return nil
}

// OutgoingLinks returns links leaving the node in the layer (all layers when nil).
func (n *Node) OutgoingLinks(layer *Layer) []*Link { return n.linksIn(n.outLinks, layer) }

// IncomingLinks returns links entering the node in the layer (all layers when nil).
func (n *Node) IncomingLinks(layer *Layer) []*Link { return n.linksIn(n.inLinks, layer) }

func (n *Node) linksIn(set idSet, layer *Layer) []*Link {
	var out []*Link
	for _, id := range set.sorted() {
		l := n.d.LinkByID(id)
		if layer == nil || l.layerID == layer.id {
			out = append(out, l)
		}
	}
	return out
}

// OutgoingDemands returns demands whose ingress is the node in the layer.
func (n *Node) OutgoingDemands(layer *Layer) []*Demand {
	var out []*Demand
	for _, l := range n.d.layers {
		if layer != nil && l != layer {
			continue
		}
		for _, dem := range l.demands {
			if dem.ingressID == n.id {
				out = append(out, dem)
			}
		}
	}
	return out
}

// IncomingDemands returns demands whose egress is the node in the layer.
func (n *Node) IncomingDemands(layer *Layer) []*Demand {
	var out []*Demand
	for _, l := range n.d.layers {
		if layer != nil && l != layer {
			continue
		}
		for _, dem := range l.demands {
			if dem.egressID == n.id {
				out = append(out, dem)
			}
		}
	}
	return out
}

// Resources returns the resources hosted at the node.
func (n *Node) Resources() []*Resource {
	out := make([]*Resource, 0, len(n.resources))
	for _, id := range n.resources.sorted() {
		out = append(out, n.d.ResourceByID(id))
	}
	return out
}

// SRGs returns the shared-risk groups the node belongs to.
func (n *Node) SRGs() []*SRG {
	out := make([]*SRG, 0, len(n.srgs))
	for _, id := range n.srgs.sorted() {
		out = append(out, n.d.SRGByID(id))
	}
	return out
}

// Remove deletes the node and cascades to its links, demands, multicast
// demands, hosted resources and SRG memberships.
func (n *Node) Remove() error {
	if n.d == nil {
		return domainErr("RemoveNode", n, ErrElementRemoved)
	}
	n.remove()
	return nil
}

func (n *Node) remove() {
	d := n.d
	for _, l := range d.layers {
		for i := len(l.mdemands) - 1; i >= 0; i-- {
			md := l.mdemands[i]
			if md.ingressID == n.id || md.egress.has(n.id) {
				md.remove()
			}
		}
		for i := len(l.demands) - 1; i >= 0; i-- {
			dem := l.demands[i]
			if dem.ingressID == n.id || dem.egressID == n.id {
				dem.remove()
			}
		}
	}
	for _, id := range n.outLinks.sorted() {
		if l := d.LinkByID(id); l != nil {
			l.remove()
		}
	}
	for _, id := range n.inLinks.sorted() {
		if l := d.LinkByID(id); l != nil {
			l.remove()
		}
	}
	for _, id := range n.resources.sorted() {
		if r := d.ResourceByID(id); r != nil {
			r.remove()
		}
	}
	for _, id := range n.srgs.sorted() {
		d.SRGByID(id).nodes.Remove(uint64(n.id))
	}
	d.nodes = removeFromList(d.nodes, n.index)
	d.debug("node removed", logging.ElementID("node", n.id))
	d.unregister(n)
}
