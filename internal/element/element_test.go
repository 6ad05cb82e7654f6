package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBBoxGeometry(t *testing.T) {
	b := BBox{X1: 768, Y1: 432, X2: 1152, Y2: 648}

	x, y := b.Center()
	assert.Equal(t, 960, x)
	assert.Equal(t, 540, y)
	assert.Equal(t, 384, b.Width())
	assert.Equal(t, 216, b.Height())
	assert.Equal(t, "(768,432,1152,648)", b.String())
}

func TestBBoxWithin(t *testing.T) {
	size := Size{Width: 1920, Height: 1080}

	tests := []struct {
		name string
		box  BBox
		want bool
	}{
		{"inside", BBox{10, 10, 20, 20}, true},
		{"full image", BBox{0, 0, 1920, 1080}, true},
		{"past right edge", BBox{1900, 10, 1921, 20}, false},
		{"negative", BBox{-1, 10, 20, 20}, false},
		{"zero width", BBox{10, 10, 10, 20}, false},
		{"inverted", BBox{30, 10, 20, 20}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.box.Within(size))
		})
	}
}

func TestCloneDoesNotShareMetadata(t *testing.T) {
	orig := UIElement{Description: "Save", Metadata: map[string]interface{}{"source": "vision"}}

	cp := orig.Clone()
	cp.Metadata["source"] = "ocr"

	assert.Equal(t, "vision", orig.Metadata["source"])
	assert.Nil(t, CloneAll(nil))
	assert.Len(t, CloneAll([]UIElement{orig, orig}), 2)
}
