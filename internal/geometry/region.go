package geometry

import "github.com/adverant/nexus/ui-locator/internal/element"

// Search region tuning for the OCR refinement pass.
const (
	MinMarginX      = 150
	MinMarginY      = 100
	MarginFactor    = 5
	MinRegionWidth  = 200
	MinRegionHeight = 100
)

// ExpandSearchRegion grows a coarse vision box into the region OCR should read.
// Margins are max(150, 5*w) horizontally and max(100, 5*h) vertically. The result is
// clamped to the image and then widened to at least 200x100; growth blocked by an image
// edge goes to the opposite side, so only an image smaller than the minimum yields a
// smaller region.
func ExpandSearchRegion(b element.BBox, size element.Size) element.BBox {
	marginX := max(MinMarginX, b.Width()*MarginFactor)
	marginY := max(MinMarginY, b.Height()*MarginFactor)

	r := element.BBox{
		X1: max(0, b.X1-marginX),
		Y1: max(0, b.Y1-marginY),
		X2: min(size.Width, b.X2+marginX),
		Y2: min(size.Height, b.Y2+marginY),
	}

	r.X1, r.X2 = growTo(r.X1, r.X2, MinRegionWidth, size.Width)
	r.Y1, r.Y2 = growTo(r.Y1, r.Y2, MinRegionHeight, size.Height)

	return Clamp(r, size)
}

// growTo widens [lo, hi) around its center to minLen, shifting it back inside [0, limit).
func growTo(lo, hi, minLen, limit int) (int, int) {
	deficit := minLen - (hi - lo)
	if deficit <= 0 {
		return lo, hi
	}
	lo -= deficit / 2
	hi += deficit - deficit/2

	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > limit {
		lo = max(0, lo-(hi-limit))
		hi = limit
	}
	return lo, hi
}

// Calibrator shifts located boxes by a fixed per-display offset.
type Calibrator struct {
	OffsetX int
	OffsetY int
}

// NewCalibrator builds a calibrator from an [x, y] offset list; anything shorter means no offset.
func NewCalibrator(offset []int) Calibrator {
	if len(offset) >= 2 {
		return Calibrator{OffsetX: offset[0], OffsetY: offset[1]}
	}
	return Calibrator{}
}

func (c Calibrator) IsZero() bool {
	return c.OffsetX == 0 && c.OffsetY == 0
}

// Apply shifts b and clamps the result back into the image.
func (c Calibrator) Apply(b element.BBox, size element.Size) element.BBox {
	if c.IsZero() {
		return b
	}
	return Clamp(element.BBox{
		X1: b.X1 + c.OffsetX,
		Y1: b.Y1 + c.OffsetY,
		X2: b.X2 + c.OffsetX,
		Y2: b.Y2 + c.OffsetY,
	}, size)
}
