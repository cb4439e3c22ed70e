package core

import (
	"github.com/signalsfoundry/netdesign/internal/logging"
)

// SetLinksAndNodesFailureState applies a batch of failure-state changes.
// Every element is validated first; either the whole batch applies or none
// of it does. An element may not appear both in an up and a down list.
func (d *Design) SetLinksAndNodesFailureState(linksUp, linksDown []*Link, nodesUp, nodesDown []*Node) error {
	const op = "SetLinksAndNodesFailureState"
	up := newIDSet()
	for _, l := range linksUp {
		if err := d.owns(op, l); err != nil {
			return err
		}
		up.add(l.id)
	}
	for _, n := range nodesUp {
		if err := d.owns(op, n); err != nil {
			return err
		}
		up.add(n.id)
	}
	for _, l := range linksDown {
		if err := d.owns(op, l); err != nil {
			return err
		}
		if up.has(l.id) {
			return domainErr(op, l, ErrInvalidArgument)
		}
	}
	for _, n := range nodesDown {
		if err := d.owns(op, n); err != nil {
			return err
		}
		if up.has(n.id) {
			return domainErr(op, n, ErrInvalidArgument)
		}
	}

	changed := 0
	for _, l := range linksUp {
		if !l.up {
			l.up = true
			changed++
		}
	}
	for _, l := range linksDown {
		if l.up {
			l.up = false
			changed++
		}
	}
	for _, n := range nodesUp {
		if !n.up {
			n.up = true
			changed++
		}
	}
	for _, n := range nodesDown {
		if n.up {
			n.up = false
			changed++
		}
	}
	if changed > 0 {
		d.touch()
		d.debug("failure state changed", logging.Int("elements", changed))
	}
	return nil
}

// DownNodes returns the nodes currently down.
func (d *Design) DownNodes() []*Node {
	var out []*Node
	for _, n := range d.nodes {
		if !n.up {
			out = append(out, n)
		}
	}
	return out
}

// DownLinks returns the links of layer currently down (every layer when nil).
func (d *Design) DownLinks(layer *Layer) []*Link {
	var out []*Link
	for _, l := range d.layers {
		if layer != nil && l != layer {
			continue
		}
		for _, link := range l.links {
			if !link.up {
				out = append(out, link)
			}
		}
	}
	return out
}

// RepairAll sets every node and link up.
func (d *Design) RepairAll() error {
	return d.SetLinksAndNodesFailureState(d.DownLinks(nil), nil, d.DownNodes(), nil)
}
