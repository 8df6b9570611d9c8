package geometry

import (
	"math"
	"testing"
)

// floatEquals is a helper for testing scalar float values with epsilon.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

func TestNewVectorPolar(t *testing.T) {
	tests := []struct {
		name   string
		radius float64
		theta  float64
		want   Vector2D
	}{
		{"Zero radius", 0, 0, Vector2D{0, 0}},
		{"Zero angle (X-axis)", 10, 0, Vector2D{10, 0}},
		{"90 degrees (Y-axis)", 10, math.Pi / 2, Vector2D{0, 10}},
		{"180 degrees (Negative X)", 10, math.Pi, Vector2D{-10, 0}},
		{"45 degrees", math.Sqrt(2), math.Pi / 4, Vector2D{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewVectorPolar(tt.radius, tt.theta)
			if !got.Eq(tt.want) {
				t.Errorf("NewVectorPolar(%v, %v) = %v; want %v", tt.radius, tt.theta, got, tt.want)
			}
		})
	}
}

func TestVector_String(t *testing.T) {
	v := Vector2D{1.234, 5.678}
	want := "(1.23, 5.68)"
	if got := v.String(); got != want {
		t.Errorf("Vector2D.String() = %q; want %q", got, want)
	}
}

func TestVector_Arithmetic(t *testing.T) {
	v1 := Vector2D{1, 2}
	v2 := Vector2D{3, 4}

	t.Run("Add", func(t *testing.T) {
		want := Vector2D{4, 6}
		if got := v1.Add(v2); !got.Eq(want) {
			t.Errorf("%v.Add(%v) = %v; want %v", v1, v2, got, want)
		}
	})

	t.Run("Sub", func(t *testing.T) {
		want := Vector2D{-2, -2}
		if got := v1.Sub(v2); !got.Eq(want) {
			t.Errorf("%v.Sub(%v) = %v; want %v", v1, v2, got, want)
		}
	})

	t.Run("Mul", func(t *testing.T) {
		want := Vector2D{2, 4}
		if got := v1.Mul(2); !got.Eq(want) {
			t.Errorf("%v.Mul(2) = %v; want %v", v1, got, want)
		}
	})
}

func TestVector_Magnitude(t *testing.T) {
	v := Vector2D{3, 4} // 3-4-5 triangle

	t.Run("Len", func(t *testing.T) {
		if got := v.Len(); got != 5 {
			t.Errorf("Len = %v; want 5", got)
		}
	})

	t.Run("LenSqr", func(t *testing.T) {
		if got := v.LenSqr(); got != 25 {
			t.Errorf("LenSqr = %v; want 25", got)
		}
	})

	t.Run("WithLen", func(t *testing.T) {
		got := v.WithLen(10)
		if !got.Eq(Vector2D{6, 8}) {
			t.Errorf("WithLen(10) = %v; want (6, 8)", got)
		}
		if got := Zero.WithLen(10); !got.Eq(Zero) {
			t.Errorf("Zero.WithLen(10) = %v; want (0,0)", got)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		if got := v.Limit(10); !got.Eq(v) {
			t.Errorf("Limit above length should not change vector, got %v", got)
		}
		got := v.Limit(1)
		if !floatEquals(got.Len(), 1) {
			t.Errorf("Limit(1) length = %v; want 1", got.Len())
		}
		if !got.Eq(Vector2D{0.6, 0.8}) {
			t.Errorf("Limit(1) = %v; want (0.6, 0.8)", got)
		}
	})

	t.Run("IsZero", func(t *testing.T) {
		if !Zero.IsZero() {
			t.Error("Expected zero vector to be zero")
		}
		if v.IsZero() {
			t.Errorf("Expected %v not to be zero", v)
		}
	})
}

func TestVector_Utilities(t *testing.T) {
	t.Run("Lerp", func(t *testing.T) {
		v1 := Vector2D{0, 0}
		v2 := Vector2D{10, 10}
		tests := []struct {
			t    float64
			want Vector2D
		}{
			{0, v1},
			{0.5, Vector2D{5, 5}},
			{1, v2},
		}
		for _, tt := range tests {
			if got := v1.Lerp(v2, tt.t); !got.Eq(tt.want) {
				t.Errorf("Lerp(%v) = %v; want %v", tt.t, got, tt.want)
			}
		}
	})

	t.Run("Angle", func(t *testing.T) {
		if got := (Vector2D{0, 1}).Angle(); !floatEquals(got, math.Pi/2) {
			t.Errorf("Angle = %v; want %v", got, math.Pi/2)
		}
	})
}

func TestVector_Eq(t *testing.T) {
	v := Vector2D{1, 2}

	if !v.Eq(Vector2D{1, 2}) {
		t.Error("Eq exact match failed")
	}

	vClose := Vector2D{1 + Epsilon/2, 2 - Epsilon/2}
	if !v.Eq(vClose) {
		t.Error("Eq epsilon match failed")
	}

	if v.Eq(Vector2D{1.1, 2}) {
		t.Error("Eq mismatch failed")
	}

	if !v.Near(Vector2D{1.00005, 2}, 1e-4) {
		t.Error("Near within tolerance failed")
	}
}
