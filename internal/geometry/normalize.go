// Package geometry converts vision-model boxes into pixel boxes that satisfy
// 0 <= x1 < x2 <= width and 0 <= y1 < y2 <= height.
package geometry

import (
	"math"

	"github.com/adverant/nexus/ui-locator/internal/element"
)

// GridSize is the side of the virtual grid some vision models answer in.
const GridSize = 1000

// IsNormalized reports whether b looks like 0-1000 grid coordinates.
//
// Any box whose largest coordinate is <= 1000 is treated as normalized, whatever
// the image size. For images that are themselves at most 1000px wide this
// misreads genuine pixel boxes; the heuristic is kept as-is (see DESIGN.md).
func IsNormalized(b element.BBox, size element.Size) bool {
	return max4(b.X1, b.Y1, b.X2, b.Y2) <= GridSize
}

// Denormalize maps a grid box onto the image, each axis scaled independently,
// then clamps and widens it to a valid pixel box.
func Denormalize(b element.BBox, size element.Size) element.BBox {
	out := element.BBox{
		X1: scale(b.X1, size.Width),
		Y1: scale(b.Y1, size.Height),
		X2: scale(b.X2, size.Width),
		Y2: scale(b.Y2, size.Height),
	}
	return Clamp(out, size)
}

// ToPixels denormalizes grid boxes and bounds-checks pixel boxes.
func ToPixels(b element.BBox, size element.Size) element.BBox {
	if IsNormalized(b, size) {
		return Denormalize(b, size)
	}
	return Clamp(b, size)
}

// Clamp forces b inside the image and widens zero-area boxes by one pixel.
func Clamp(b element.BBox, size element.Size) element.BBox {
	b.X1 = clampInt(b.X1, 0, size.Width)
	b.X2 = clampInt(b.X2, 0, size.Width)
	b.Y1 = clampInt(b.Y1, 0, size.Height)
	b.Y2 = clampInt(b.Y2, 0, size.Height)

	b.X1, b.X2 = widen(b.X1, b.X2, size.Width)
	b.Y1, b.Y2 = widen(b.Y1, b.Y2, size.Height)
	return b
}

// widen guarantees lo < hi <= limit for limit >= 1.
func widen(lo, hi, limit int) (int, int) {
	if hi > lo {
		return lo, hi
	}
	if lo >= limit {
		lo = limit - 1
	}
	if lo < 0 {
		lo = 0
	}
	return lo, lo + 1
}

func scale(v, dim int) int {
	// integer product keeps the division as the only rounding step
	return int(math.RoundToEven(float64(v) * float64(dim) / GridSize))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max4(a, b, c, d int) int {
	m := a
	for _, v := range []int{b, c, d} {
		if v > m {
			m = v
		}
	}
	return m
}
