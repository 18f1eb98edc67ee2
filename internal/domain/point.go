package domain

// Immutable planar coordinate plus the demand served at that location.
// ID 0 is always the depot once an Instance has been built.
type Point struct {
	ID     int
	X      float64
	Y      float64
	Demand int
}
