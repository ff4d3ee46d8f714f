package domain

// Box is a four element box. Depending on context it holds either the COCO
// form [x, y, width, height] or the corner form [x1, y1, x2, y2].
type Box [4]float64

// Valid reports whether a corner form box is non-degenerate
func (b Box) Valid() bool {
	return b[2] > b[0] && b[3] > b[1]
}

// NormalizedBox is a corner form box scaled to the 0-1000 range
type NormalizedBox [4]int
