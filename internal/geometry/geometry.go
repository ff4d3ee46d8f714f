// Package geometry converts between box representations and scales boxes
// to the fixed 0-1000 grid used by the exported dataset.
package geometry

import (
	"math"

	"github.com/lewtec/refcocos/internal/domain"
)

// NormalizedScale is the side of the grid normalized coordinates live in
const NormalizedScale = 1000

// ToCornerForm converts [x, y, w, h] into [x1, y1, x2, y2]
func ToCornerForm(b domain.Box) domain.Box {
	return domain.Box{b[0], b[1], b[0] + b[2], b[1] + b[3]}
}

// FromCornerForm converts [x1, y1, x2, y2] back into [x, y, w, h]
func FromCornerForm(b domain.Box) domain.Box {
	return domain.Box{b[0], b[1], b[2] - b[0], b[3] - b[1]}
}

// Normalize scales a corner form box to the 0-1000 grid. A zero (or negative)
// dimension is treated as 1.
func Normalize(b domain.Box, width, height int) domain.NormalizedBox {
	w, h := float64(width), float64(height)
	if width <= 0 {
		w = 1
	}
	if height <= 0 {
		h = 1
	}
	return domain.NormalizedBox{
		scale(b[0], w),
		scale(b[1], h),
		scale(b[2], w),
		scale(b[3], h),
	}
}

// NormalizeOptional is Normalize lifted over a missing box
func NormalizeOptional(b *domain.Box, width, height int) *domain.NormalizedBox {
	if b == nil {
		return nil
	}
	n := Normalize(*b, width, height)
	return &n
}

// math.Round goes half away from zero, which matches what the browser
// labeler computed for the non-negative coordinates it produced
func scale(coord, dimension float64) int {
	return int(math.Round(coord / dimension * NormalizedScale))
}

// IoU computes intersection over union of two COCO form boxes
func IoU(a, b domain.Box) float64 {
	ca, cb := ToCornerForm(a), ToCornerForm(b)
	left := math.Max(ca[0], cb[0])
	top := math.Max(ca[1], cb[1])
	right := math.Min(ca[2], cb[2])
	bottom := math.Min(ca[3], cb[3])
	if right < left || bottom < top {
		return 0
	}
	intersection := (right - left) * (bottom - top)
	union := a[2]*a[3] + b[2]*b[3] - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
