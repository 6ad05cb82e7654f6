package locator

import (
	"context"

	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/errors"
	"github.com/adverant/nexus/ui-locator/internal/geometry"
	"github.com/adverant/nexus/ui-locator/internal/screen"
)

const (
	// VerifyMinConfidence is the confidence a located element needs to still count as valid.
	VerifyMinConfidence = 0.5
	// FallbackMinConfidence is the confidence the top result needs before the static fallback is skipped.
	FallbackMinConfidence = 0.6
	// FallbackConfidence is assigned to elements synthesized from a static bbox.
	FallbackConfidence = 0.5
)

// Verify reports whether a previously located element is still usable on an image of
// the given size. It does not re-locate anything.
func (e *Engine) Verify(el element.UIElement, size element.Size) bool {
	return el.BBox.Within(size) && el.Confidence >= VerifyMinConfidence
}

// LocateWithFallback runs Locate with target and opts and returns the top result when it
// is confident enough, otherwise an element built from the caller's static bbox. It
// returns nil when neither is available. Only context cancellation is reported as an
// error.
//
// The static bbox is clamped to the screenshot but not calibrated; it is taken to be in
// the same coordinates as the returned results. When shot is nil and the capture fails
// the bbox is returned as given.
func (e *Engine) LocateWithFallback(ctx context.Context, description string, shot *screen.Screenshot, target string, opts LocateOptions, fallback *element.BBox) (*element.UIElement, error) {
	if shot == nil {
		captured, err := e.capture(ctx, opts)
		if err != nil {
			e.logger.Warn("Screenshot capture failed, nothing to search",
				"error", errors.NewCollaboratorError("capture", err))
		} else {
			shot = captured
		}
	}

	var (
		results []element.UIElement
		err     error
	)
	if shot != nil {
		results, err = e.Locate(ctx, description, shot, target, opts)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logger.Warn("Locate failed, considering fallback", "description", description, "error", err)
	}

	if len(results) > 0 && results[0].Confidence >= FallbackMinConfidence {
		top := results[0]
		return &top, nil
	}

	if fallback == nil {
		return nil, nil
	}

	bbox := *fallback
	if shot != nil {
		bbox = geometry.Clamp(bbox, shot.Size())
	}

	e.logger.Info("Using static fallback bbox",
		"description", description,
		"bbox", bbox.String(),
		"results", len(results))

	return &element.UIElement{
		ElementType: element.TypeFallback,
		Description: description,
		BBox:        bbox,
		Confidence:  FallbackConfidence,
		Metadata:    map[string]interface{}{"source": "fallback"},
	}, nil
}
