package screen

import (
	"context"
	"fmt"
	"image"
)

// Capturer is the screen-capture collaborator. Monitor 0 is the whole virtual
// screen; 1..n are the individual displays.
type Capturer interface {
	Capture(ctx context.Context, monitor int) (image.Image, error)
	Monitors(ctx context.Context) ([]image.Rectangle, error)
}

// StaticCapturer serves pre-recorded frames, one per monitor index.
type StaticCapturer struct {
	Frames []image.Image
}

func NewStaticCapturer(frames ...image.Image) *StaticCapturer {
	return &StaticCapturer{Frames: frames}
}

func (c *StaticCapturer) Capture(ctx context.Context, monitor int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if monitor < 0 || monitor >= len(c.Frames) {
		return nil, fmt.Errorf("monitor %d not available (%d frames)", monitor, len(c.Frames))
	}
	return c.Frames[monitor], nil
}

func (c *StaticCapturer) Monitors(_ context.Context) ([]image.Rectangle, error) {
	bounds := make([]image.Rectangle, len(c.Frames))
	for i, f := range c.Frames {
		bounds[i] = f.Bounds()
	}
	return bounds, nil
}
