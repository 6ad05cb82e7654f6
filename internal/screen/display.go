package screen

import (
	"context"
	"fmt"
	"image"

	"github.com/vova616/screenshot"
)

// DisplayCapturer grabs the live desktop. Only monitor 0, the whole screen, is
// available.
type DisplayCapturer struct{}

func NewDisplayCapturer() *DisplayCapturer {
	return &DisplayCapturer{}
}

func (DisplayCapturer) Capture(ctx context.Context, monitor int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if monitor != 0 {
		return nil, fmt.Errorf("monitor %d not available, display capture only supports monitor 0", monitor)
	}
	img, err := screenshot.CaptureScreen()
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	return img, nil
}

func (DisplayCapturer) Monitors(_ context.Context) ([]image.Rectangle, error) {
	r, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("failed to read screen bounds: %w", err)
	}
	return []image.Rectangle{r}, nil
}
