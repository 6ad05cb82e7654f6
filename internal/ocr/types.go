/**
 * OCR Types - Shared data structures for text detection
 *
 * Detections are reported in the local pixel space of the image handed to the
 * reader. Callers that read a cropped region add the region offset back.
 */

package ocr

import (
	"context"
	"image"
	"strings"
)

// Reader is the OCR collaborator the locate engine depends on.
type Reader interface {
	ReadText(ctx context.Context, img image.Image) ([]Detection, error)
}

// Detection is one recognized piece of text.
type Detection struct {
	Polygon    [4]image.Point // clockwise from top-left
	Text       string
	Confidence float64 // 0-1
}

// FromRect builds an axis-aligned detection.
func FromRect(r image.Rectangle, text string, confidence float64) Detection {
	return Detection{
		Polygon: [4]image.Point{
			{X: r.Min.X, Y: r.Min.Y},
			{X: r.Max.X, Y: r.Min.Y},
			{X: r.Max.X, Y: r.Max.Y},
			{X: r.Min.X, Y: r.Max.Y},
		},
		Text:       text,
		Confidence: confidence,
	}
}

// Bounds returns the axis-aligned rectangle enclosing the polygon.
func (d Detection) Bounds() image.Rectangle {
	r := image.Rectangle{Min: d.Polygon[0], Max: d.Polygon[0]}
	for _, p := range d.Polygon[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}

// Offset moves the detection by (dx, dy).
func (d Detection) Offset(dx, dy int) Detection {
	delta := image.Pt(dx, dy)
	for i := range d.Polygon {
		d.Polygon[i] = d.Polygon[i].Add(delta)
	}
	return d
}

// Containing keeps detections whose text contains target, case-insensitively.
// An empty target keeps everything.
func Containing(detections []Detection, target string) []Detection {
	needle := strings.ToLower(strings.TrimSpace(target))
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if needle == "" || strings.Contains(strings.ToLower(d.Text), needle) {
			out = append(out, d)
		}
	}
	return out
}

// AboveConfidence drops detections at or below minConfidence.
func AboveConfidence(detections []Detection, minConfidence float64) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence > minConfidence {
			out = append(out, d)
		}
	}
	return out
}
