package geometry

import "math"

// Torus is a square world of side Size centered on the origin whose
// edges wrap around: leaving at +Size/2 re-enters at -Size/2.
// Every coordinate of a wrapped position lies in [-Size/2, Size/2].
type Torus struct {
	Size float64
}

// Half returns the distance from the origin to any edge.
func (t Torus) Half() float64 {
	return t.Size / 2
}

// Contains reports whether p lies inside the world bounds.
func (t Torus) Contains(p Vector2D) bool {
	h := t.Half()
	return p.X >= -h && p.X <= h && p.Y >= -h && p.Y <= h
}

// Delta returns the shortest vector going from b to a, that is a-b
// with each axis folded to the nearer image across the seam.
func (t Torus) Delta(a, b Vector2D) Vector2D {
	return Vector2D{
		X: t.foldAxis(a.X - b.X),
		Y: t.foldAxis(a.Y - b.Y),
	}
}

// DistanceSquared returns the squared wrap-aware distance between a and b.
// Per axis d = |a-b|, replaced by Size-d when d exceeds Size/2.
func (t Torus) DistanceSquared(a, b Vector2D) float64 {
	h := t.Half()
	dx := math.Abs(a.X - b.X)
	if dx > h {
		dx = t.Size - dx
	}
	dy := math.Abs(a.Y - b.Y)
	if dy > h {
		dy = t.Size - dy
	}
	return dx*dx + dy*dy
}

// NearestImage returns the copy of other (shifted by whole world sizes)
// that is closest to from. Averaging nearest images gives a centroid
// that does not jump to the middle of the map when a group straddles a seam.
func (t Torus) NearestImage(from, other Vector2D) Vector2D {
	return from.Sub(t.Delta(from, other))
}

// Wrap brings p back inside the world bounds. It returns the wrapped
// position and the shift that was applied, so that companion values
// (such as the previous position used for interpolation) can be moved
// by the same amount.
func (t Torus) Wrap(p Vector2D) (Vector2D, Vector2D) {
	wx, sx := t.wrapAxis(p.X)
	wy, sy := t.wrapAxis(p.Y)
	return Vector2D{X: wx, Y: wy}, Vector2D{X: sx, Y: sy}
}

func (t Torus) foldAxis(d float64) float64 {
	h := t.Half()
	if d > h {
		return d - t.Size
	}
	if d < -h {
		return d + t.Size
	}
	return d
}

func (t Torus) wrapAxis(v float64) (float64, float64) {
	h := t.Half()
	if v >= -h && v <= h {
		return v, 0
	}
	if t.Size <= 0 {
		return 0, -v
	}
	w := math.Mod(v+h, t.Size)
	if w < 0 {
		w += t.Size
	}
	w -= h
	return w, w - v
}
