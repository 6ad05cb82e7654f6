// Package element holds the UI element types shared by the parser, scorer, cache and engine.
package element

import "fmt"

// Size is an image size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BBox is a bounding box (x1, y1) top-left to (x2, y2) bottom-right.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BBox) Width() int  { return b.X2 - b.X1 }
func (b BBox) Height() int { return b.Y2 - b.Y1 }

// Center uses integer division, matching how click targets are computed.
func (b BBox) Center() (int, int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Within reports whether the box is non-degenerate and inside an image of the given size.
func (b BBox) Within(size Size) bool {
	return 0 <= b.X1 && b.X1 < b.X2 && b.X2 <= size.Width &&
		0 <= b.Y1 && b.Y1 < b.Y2 && b.Y2 <= size.Height
}

func (b BBox) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
}

// Element types produced by the locator itself.
const (
	TypeUnknown  = "unknown"
	TypeOCRText  = "ocr_text"
	TypeFallback = "fallback"
)

// UIElement is a located element in full-image pixel space.
type UIElement struct {
	ElementType string                 `json:"element_type"`
	Description string                 `json:"description"`
	BBox        BBox                   `json:"bbox"`
	Confidence  float64                `json:"confidence"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func (e UIElement) Center() (int, int) { return e.BBox.Center() }
func (e UIElement) Width() int         { return e.BBox.Width() }
func (e UIElement) Height() int        { return e.BBox.Height() }

// Clone returns a copy that shares no map with e.
func (e UIElement) Clone() UIElement {
	if e.Metadata != nil {
		md := make(map[string]interface{}, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		e.Metadata = md
	}
	return e
}

// CloneAll copies a result list for handing to another owner.
func CloneAll(elements []UIElement) []UIElement {
	if elements == nil {
		return nil
	}
	out := make([]UIElement, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
	}
	return out
}

// RawCandidate is a producer's proposal before scale detection and bounds checking.
type RawCandidate struct {
	ElementType string
	Description string
	BBox        BBox
	Confidence  float64
	Metadata    map[string]interface{}
}
