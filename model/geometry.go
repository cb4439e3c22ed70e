package model

// DefaultLayout is the layout name used when a position is set without one.
const DefaultLayout = "default"

// Point is a 2-D position of a node inside a named layout.
type Point struct {
	X float64
	Y float64
}
