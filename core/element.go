package core

import (
	"maps"
	"slices"
)

const noID int64 = -1

// ElementKind identifies the type of a design element.
type ElementKind int

const (
	KindLayer ElementKind = iota
	KindNode
	KindLink
	KindDemand
	KindRoute
	KindMulticastDemand
	KindMulticastTree
	KindResource
	KindSRG
)

func (k ElementKind) String() string {
	switch k {
	case KindLayer:
		return "layer"
	case KindNode:
		return "node"
	case KindLink:
		return "link"
	case KindDemand:
		return "demand"
	case KindRoute:
		return "route"
	case KindMulticastDemand:
		return "multicast_demand"
	case KindMulticastTree:
		return "multicast_tree"
	case KindResource:
		return "resource"
	case KindSRG:
		return "srg"
	default:
		return "unknown"
	}
}

// Element is implemented by every entity stored in a Design.
type Element interface {
	ID() int64
	Index() int
	Kind() ElementKind
	Design() *Design
	IsRemoved() bool
	Attribute(key string) (string, bool)
	Attributes() map[string]string
	SetAttribute(key, value string) error
	RemoveAttribute(key string)

	base() *elementBase
}

// elementBase holds identity and attributes shared by every element.
type elementBase struct {
	id    int64
	index int
	d     *Design
	attrs map[string]string
}

func newBase(d *Design, id int64, index int) elementBase {
	return elementBase{id: id, index: index, d: d, attrs: make(map[string]string)}
}

// ID returns the element id, unique within its design and never reused.
func (e *elementBase) ID() int64 { return e.id }

// Index returns the dense position of the element among its siblings.
func (e *elementBase) Index() int { return e.index }

// Design returns the owning design, or nil once the element is removed.
func (e *elementBase) Design() *Design { return e.d }

// IsRemoved reports whether the element has been removed from its design.
func (e *elementBase) IsRemoved() bool { return e.d == nil }

func (e *elementBase) Attribute(key string) (string, bool) {
	v, ok := e.attrs[key]
	return v, ok
}

// Attributes returns a copy of the attribute map.
func (e *elementBase) Attributes() map[string]string {
	return maps.Clone(e.attrs)
}

func (e *elementBase) SetAttribute(key, value string) error {
	if e.d == nil {
		return &DomainError{Op: "SetAttribute", ID: e.id, Cause: ErrElementRemoved}
	}
	if key == "" {
		return &DomainError{Op: "SetAttribute", ID: e.id, Cause: ErrInvalidArgument}
	}
	e.attrs[key] = value
	return nil
}

func (e *elementBase) RemoveAttribute(key string) {
	delete(e.attrs, key)
}

func (e *elementBase) base() *elementBase { return e }

func (e *elementBase) cloneBase(d *Design) elementBase {
	return elementBase{id: e.id, index: e.index, d: d, attrs: maps.Clone(e.attrs)}
}

func (e *elementBase) sameBase(o *elementBase) bool {
	return e.id == o.id && e.index == o.index && maps.Equal(e.attrs, o.attrs)
}

// removeFromList deletes list[idx] and renumbers every sibling above it. It
// is the only place element indices move.
func removeFromList[T Element](list []T, idx int) []T {
	copy(list[idx:], list[idx+1:])
	var zero T
	list[len(list)-1] = zero
	list = list[:len(list)-1]
	for i := idx; i < len(list); i++ {
		list[i].base().index = i
	}
	return list
}

// idSet is an unordered set of element ids.
type idSet map[int64]struct{}

func newIDSet(ids ...int64) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s idSet) add(id int64)       { s[id] = struct{}{} }
func (s idSet) remove(id int64)    { delete(s, id) }
func (s idSet) has(id int64) bool  { _, ok := s[id]; return ok }
func (s idSet) equal(o idSet) bool { return maps.Equal(s, o) }
func (s idSet) sorted() []int64    { return slices.Sorted(maps.Keys(s)) }

func (s idSet) clone() idSet {
	c := make(idSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

func cloneCounts(m map[int64]int) map[int64]int {
	c := make(map[int64]int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
