package geometry

import (
	"fmt"
	"math"
)

// Epsilon is the threshold under which a magnitude is treated as zero.
// Every normalization in the engine goes through it, so a zero-length
// vector never reaches a division.
const (
	Epsilon = 1e-9
)

// Vector2D represents a 2D vector or point in cartesian space.
// Fields are public: positions and velocities are plain data shared
// with renderers, and literal initialization stays short: v := Vector2D{1, 2}
type Vector2D struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Zero is the null vector.
var Zero = Vector2D{}

// NewVectorPolar creates a new Vector2D from polar coordinates.
// theta is in radians.
func NewVectorPolar(radius, theta float64) Vector2D {
	x := radius * math.Cos(theta)
	y := radius * math.Sin(theta)

	// cos(pi/2) and friends are not exactly zero
	if math.Abs(x) < Epsilon {
		x = 0
	}
	if math.Abs(y) < Epsilon {
		y = 0
	}

	return Vector2D{X: x, Y: y}
}

// String implements the fmt.Stringer interface.
func (v Vector2D) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}

// ---------------------------------------------------------------------
// Arithmetic Operations
// Value receivers, new values returned: the struct is two words wide.
// ---------------------------------------------------------------------

// Add adds two vectors and returns the result.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{v.X + other.X, v.Y + other.Y}
}

// Sub subtracts the other vector from the current vector.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{v.X - other.X, v.Y - other.Y}
}

// Mul scales the vector by a scalar value.
func (v Vector2D) Mul(scalar float64) Vector2D {
	return Vector2D{v.X * scalar, v.Y * scalar}
}

// ---------------------------------------------------------------------
// Magnitude and Normalization
// ---------------------------------------------------------------------

// LenSqr calculates the squared magnitude of the vector.
// Use it for comparisons, it avoids the square root.
func (v Vector2D) LenSqr() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Len calculates the magnitude (length) of the vector.
func (v Vector2D) Len() float64 {
	return math.Sqrt(v.LenSqr())
}

// IsZero reports whether the vector is too short to carry a direction.
func (v Vector2D) IsZero() bool {
	return v.LenSqr() < Epsilon*Epsilon
}

// WithLen returns a vector pointing like v with magnitude length,
// or the zero vector when v has no direction.
func (v Vector2D) WithLen(length float64) Vector2D {
	l := v.Len()
	if l < Epsilon {
		return Zero
	}
	return v.Mul(length / l)
}

// Limit caps the magnitude of v to maxLen, leaving shorter vectors untouched.
func (v Vector2D) Limit(maxLen float64) Vector2D {
	lenSq := v.LenSqr()
	if lenSq <= maxLen*maxLen {
		return v
	}
	return v.Mul(maxLen / math.Sqrt(lenSq))
}

// ---------------------------------------------------------------------
// Geometric Utilities
// ---------------------------------------------------------------------

// Angle returns the angle (in radians) of the vector relative to the X-axis.
// Range: [-Pi, Pi]
func (v Vector2D) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}

// Lerp (Linear Interpolate) calculates a point between v and target based on t [0, 1].
func (v Vector2D) Lerp(target Vector2D, t float64) Vector2D {
	return Vector2D{
		X: v.X + (target.X-v.X)*t,
		Y: v.Y + (target.Y-v.Y)*t,
	}
}

// ---------------------------------------------------------------------
// Comparison
// ---------------------------------------------------------------------

// Eq checks if two vectors are approximately equal using the Epsilon constant.
func (v Vector2D) Eq(other Vector2D) bool {
	return math.Abs(v.X-other.X) <= Epsilon && math.Abs(v.Y-other.Y) <= Epsilon
}

// Near checks if two vectors are equal within tol on both axes.
func (v Vector2D) Near(other Vector2D, tol float64) bool {
	return math.Abs(v.X-other.X) <= tol && math.Abs(v.Y-other.Y) <= tol
}
