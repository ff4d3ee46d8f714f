package geometry

import (
	"math"
	"testing"

	"github.com/lewtec/refcocos/internal/domain"
)

func TestToCornerForm(t *testing.T) {
	tests := []struct {
		name string
		in   domain.Box
		want domain.Box
	}{
		{"integer box", domain.Box{10, 10, 20, 20}, domain.Box{10, 10, 30, 30}},
		{"fractional box", domain.Box{1.5, 2.25, 3.5, 4}, domain.Box{1.5, 2.25, 5, 6.25}},
		{"zero size", domain.Box{7, 8, 0, 0}, domain.Box{7, 8, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToCornerForm(tt.in)
			if got != tt.want {
				t.Errorf("ToCornerForm(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if back := FromCornerForm(got); back != tt.in {
				t.Errorf("FromCornerForm(%v) = %v, want %v", got, back, tt.in)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("scales each axis by its own dimension", func(t *testing.T) {
		got := Normalize(domain.Box{10, 20, 55, 101}, 100, 200)
		want := domain.NormalizedBox{100, 100, 550, 505}
		if got != want {
			t.Errorf("Normalize() = %v, want %v", got, want)
		}
	})

	t.Run("rounds half away from zero", func(t *testing.T) {
		got := Normalize(domain.Box{1, 1, 3, 3}, 16, 16)
		want := domain.NormalizedBox{63, 63, 188, 188}
		if got != want {
			t.Errorf("Normalize() = %v, want %v", got, want)
		}
	})

	t.Run("zero dimensions are treated as one", func(t *testing.T) {
		got := Normalize(domain.Box{1, 2, 3, 4}, 0, 0)
		want := domain.NormalizedBox{1000, 2000, 3000, 4000}
		if got != want {
			t.Errorf("Normalize() = %v, want %v", got, want)
		}
	})

	t.Run("in bounds boxes stay in range and are stable", func(t *testing.T) {
		box := domain.Box{0, 0, 640, 480}
		first := Normalize(box, 640, 480)
		second := Normalize(box, 640, 480)
		if first != second {
			t.Errorf("Normalize is not deterministic: %v != %v", first, second)
		}
		for i, v := range first {
			if v < 0 || v > NormalizedScale {
				t.Errorf("coordinate %d = %d out of [0, 1000]", i, v)
			}
		}
	})

	t.Run("missing box stays missing", func(t *testing.T) {
		if got := NormalizeOptional(nil, 10, 10); got != nil {
			t.Errorf("NormalizeOptional(nil) = %v, want nil", got)
		}
	})
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.Box
		want float64
	}{
		{"identical", domain.Box{0, 0, 10, 10}, domain.Box{0, 0, 10, 10}, 1},
		{"disjoint", domain.Box{0, 0, 10, 10}, domain.Box{20, 20, 5, 5}, 0},
		{"half overlap", domain.Box{0, 0, 10, 10}, domain.Box{5, 0, 10, 10}, 50.0 / 150.0},
		{"degenerate", domain.Box{0, 0, 0, 0}, domain.Box{0, 0, 0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IoU() = %v, want %v", got, tt.want)
			}
		})
	}
}
