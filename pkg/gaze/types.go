// Package gaze defines the gaze sample types and the stream conditioner that
// turns the raw, jittery webcam-derived gaze signal into a stable point.
package gaze

import (
	"math"
	"time"
)

// Point is a position in normalized screen space (0..1 on both axes).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance to another point.
func (p Point) DistanceTo(o Point) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Sample is one raw gaze estimate produced by the vision collaborator.
// Confidence is 0-1; low confidence usually means the pupils were not located.
type Sample struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Point returns the sample's position.
func (s Sample) Point() Point {
	return Point{X: s.X, Y: s.Y}
}
