/**
 * Hybrid locate engine
 *
 * Turns a textual element description into pixel boxes on a screenshot. Vision gives
 * semantic targeting, OCR gives pixel precision; the engine cascades between them and
 * every failed step falls through to the next one. An empty result means "not found".
 */

package locator

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adverant/nexus/ui-locator/internal/cache"
	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/errors"
	"github.com/adverant/nexus/ui-locator/internal/geometry"
	"github.com/adverant/nexus/ui-locator/internal/logging"
	"github.com/adverant/nexus/ui-locator/internal/matching"
	"github.com/adverant/nexus/ui-locator/internal/ocr"
	"github.com/adverant/nexus/ui-locator/internal/parser"
	"github.com/adverant/nexus/ui-locator/internal/screen"
)

// VisionQuerier is the vision model collaborator.
type VisionQuerier interface {
	Query(ctx context.Context, imagePNG []byte, prompt string) (string, error)
}

// Options are the engine-wide settings.
type Options struct {
	VisionEnabled bool
	// OCRMinConfidence drops hybrid OCR detections at or below it.
	OCRMinConfidence float64
	// MonitorIndex is captured when Locate gets no screenshot.
	MonitorIndex int
	Calibrator   geometry.Calibrator
}

// Dependencies are the engine's collaborators. Vision, OCR, Capturer and Recorder may
// be nil; a nil Cache gets a process-local MemoryCache.
type Dependencies struct {
	Vision   VisionQuerier
	OCR      ocr.Reader
	Cache    cache.ResultCache
	Capturer screen.Capturer
	Recorder Recorder
}

// LocateOptions adjust a single call. The zero value uses the cache and allows OCR.
type LocateOptions struct {
	SkipCache bool
	SkipOCR   bool
	// Monitor overrides Options.MonitorIndex for captures made by this call.
	Monitor *int
}

// Engine locates UI elements on screenshots.
type Engine struct {
	opts     Options
	vision   VisionQuerier
	reader   ocr.Reader
	cache    cache.ResultCache
	capturer screen.Capturer
	recorder Recorder
	logger   *logging.Logger
	tracer   trace.Tracer
}

func NewEngine(opts Options, deps Dependencies) *Engine {
	resultCache := deps.Cache
	if resultCache == nil {
		resultCache = cache.NewMemoryCache()
	}

	e := &Engine{
		opts:     opts,
		vision:   deps.Vision,
		reader:   deps.OCR,
		cache:    resultCache,
		capturer: deps.Capturer,
		recorder: deps.Recorder,
		logger:   logging.NewLogger("LocateEngine"),
		tracer:   otel.Tracer("ui-locator"),
	}

	e.logger.Info("Locate engine initialized",
		"visionEnabled", e.visionEnabled(),
		"ocrAvailable", e.ocrAvailable(),
		"historyEnabled", e.recorder != nil)

	return e
}

func (e *Engine) visionEnabled() bool { return e.opts.VisionEnabled && e.vision != nil }
func (e *Engine) ocrAvailable() bool  { return e.reader != nil }

// Locate finds elements matching description on shot, ranked against target when one
// is given. A nil shot is captured from the configured monitor.
//
// Collaborator failures never surface: they empty that step and the cascade moves on.
// The only error returned is a ParseError from the vision-only path.
func (e *Engine) Locate(ctx context.Context, description string, shot *screen.Screenshot, target string, opts LocateOptions) ([]element.UIElement, error) {
	ctx, span := e.tracer.Start(ctx, "locator.locate")
	defer span.End()
	start := time.Now()

	if shot == nil {
		captured, err := e.capture(ctx, opts)
		if err != nil {
			e.logger.Warn("Screenshot capture failed, nothing to search",
				"error", errors.NewCollaboratorError("capture", err))
			span.RecordError(err)
			return []element.UIElement{}, nil
		}
		shot = captured
	}
	size := shot.Size()

	strategy := SelectStrategy(e.visionEnabled(), e.ocrAvailable(), !opts.SkipOCR, target)
	span.SetAttributes(
		attribute.String("locator.strategy", strategy.String()),
		attribute.String("locator.target", target),
		attribute.Int("image.width", size.Width),
		attribute.Int("image.height", size.Height),
	)

	e.logger.Info("Locating element",
		"strategy", strategy.String(),
		"description", description,
		"target", target,
		"width", size.Width,
		"height", size.Height)

	var (
		results []element.UIElement
		err     error
	)
	switch strategy {
	case StrategyOCROnly:
		results = e.locateOCROnly(ctx, shot, target)
	case StrategyHybrid:
		results = e.locateHybrid(ctx, description, shot, target, !opts.SkipCache)
	default:
		results, err = e.locateVisionOnly(ctx, description, shot, target, !opts.SkipCache)
	}

	results = e.calibrate(results, size)
	e.record(ctx, description, target, strategy, results, err, start)

	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("locator.results", len(results)))
	e.logger.Info("Locate complete",
		"strategy", strategy.String(),
		"results", len(results),
		"duration", time.Since(start))

	if results == nil {
		results = []element.UIElement{}
	}
	return results, nil
}

func (e *Engine) capture(ctx context.Context, opts LocateOptions) (*screen.Screenshot, error) {
	if e.capturer == nil {
		return nil, fmt.Errorf("no screenshot given and no capturer configured")
	}

	monitor := e.opts.MonitorIndex
	if opts.Monitor != nil {
		monitor = *opts.Monitor
	}

	img, err := e.capturer.Capture(ctx, monitor)
	if err != nil {
		return nil, fmt.Errorf("capture of monitor %d failed: %w", monitor, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("capture of monitor %d returned an empty image", monitor)
	}
	return screen.New(img), nil
}

// locateOCROnly returns every full-image detection whose text contains target.
func (e *Engine) locateOCROnly(ctx context.Context, shot *screen.Screenshot, target string) []element.UIElement {
	if !e.ocrAvailable() {
		e.logger.Warn("Vision disabled and no OCR reader configured")
		return nil
	}
	return e.ocrPass(ctx, shot, fullImage(shot.Size()), target, "full", false)
}

// locateVisionOnly asks the vision model (through the cache) and ranks against target.
func (e *Engine) locateVisionOnly(ctx context.Context, description string, shot *screen.Screenshot, target string, useCache bool) ([]element.UIElement, error) {
	elements, err := e.visionCandidates(ctx, description, shot, useCache)
	if err != nil {
		if errors.IsParseError(err) {
			return nil, err
		}
		e.logger.Warn("Vision step failed, no results", "error", err)
		return nil, nil
	}

	if target != "" && len(elements) > 0 {
		elements = matching.FilterAndRank(elements, target)
	}
	return elements, nil
}

// locateHybrid: vision picks a region, OCR pins the target inside it, then the whole
// image, and the vision candidates are the last resort.
func (e *Engine) locateHybrid(ctx context.Context, description string, shot *screen.Screenshot, target string, useCache bool) []element.UIElement {
	size := shot.Size()

	coarse, err := e.visionCandidates(ctx, description, shot, useCache)
	if err != nil {
		e.logger.Warn("Vision step failed, continuing with OCR", "error", err)
		coarse = nil
	}

	if len(coarse) > 0 {
		best, _ := matching.Best(coarse, target)
		region := geometry.ExpandSearchRegion(best.BBox, size)

		e.logger.Debug("Refining vision candidate with OCR",
			"candidate", best.BBox.String(),
			"region", region.String())

		if hits := e.ocrPass(ctx, shot, region, target, "region", true); len(hits) > 0 {
			return hits
		}
		e.logger.Info("No OCR match inside search region, trying full image", "region", region.String())
	} else {
		e.logger.Info("Vision found no candidates, trying full-image OCR")
	}

	if hits := e.ocrPass(ctx, shot, fullImage(size), target, "full", true); len(hits) > 0 {
		return hits
	}

	if len(coarse) > 0 {
		e.logger.Info("OCR found no match, using vision candidates", "candidates", len(coarse))
	}
	return coarse
}

// visionCandidates returns normalized vision candidates for description, consulting
// the cache first. Cache failures are logged and treated as misses.
func (e *Engine) visionCandidates(ctx context.Context, description string, shot *screen.Screenshot, useCache bool) ([]element.UIElement, error) {
	ctx, span := e.tracer.Start(ctx, "locator.vision")
	defer span.End()

	key := cache.NewKey(description, shot.PixelHash())
	if useCache {
		cached, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("Result cache read failed, treating as miss", "error", err)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			e.logger.Debug("Result cache hit", "description", description, "results", len(cached))
			return cached, nil
		}
	}

	imagePNG, err := shot.PNG()
	if err != nil {
		return nil, errors.NewCollaboratorError("vision", err)
	}

	raw, err := e.vision.Query(ctx, imagePNG, BuildPrompt(description))
	if err != nil {
		span.RecordError(err)
		return nil, errors.NewCollaboratorError("vision", err)
	}

	candidates, err := parser.Parse(raw)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("Vision answer could not be parsed", "error", err)
		return nil, err
	}

	elements := normalize(candidates, shot.Size())
	span.SetAttributes(attribute.Int("vision.candidates", len(elements)))

	if useCache {
		if err := e.cache.Set(ctx, key, elements); err != nil {
			e.logger.Warn("Result cache write failed", "error", err)
		}
	}
	return elements, nil
}

// normalize converts raw candidates to in-bounds pixel elements.
func normalize(candidates []element.RawCandidate, size element.Size) []element.UIElement {
	elements := make([]element.UIElement, 0, len(candidates))
	for _, c := range candidates {
		elements = append(elements, element.UIElement{
			ElementType: c.ElementType,
			Description: c.Description,
			BBox:        geometry.ToPixels(c.BBox, size),
			Confidence:  c.Confidence,
			Metadata: map[string]interface{}{
				"source":     "vision",
				"normalized": geometry.IsNormalized(c.BBox, size),
			},
		})
	}
	return elements
}

// ocrPass reads region of shot and returns detections containing target, in
// full-image coordinates.
func (e *Engine) ocrPass(ctx context.Context, shot *screen.Screenshot, region element.BBox, target, step string, filterConfidence bool) []element.UIElement {
	ctx, span := e.tracer.Start(ctx, "locator.ocr_"+step)
	defer span.End()

	size := shot.Size()
	var img image.Image
	if region == fullImage(size) {
		img = shot.Image()
	} else {
		img = shot.Crop(region)
	}

	detections, err := e.reader.ReadText(ctx, img)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("OCR step failed, no results",
			"step", step,
			"error", errors.NewCollaboratorError("ocr", err))
		return nil
	}

	if filterConfidence {
		detections = ocr.AboveConfidence(detections, e.opts.OCRMinConfidence)
	}
	hits := ocr.Containing(detections, target)
	span.SetAttributes(
		attribute.Int("ocr.detections", len(detections)),
		attribute.Int("ocr.hits", len(hits)),
	)

	elements := make([]element.UIElement, 0, len(hits))
	for _, d := range hits {
		d = d.Offset(region.X1, region.Y1)
		r := d.Bounds()
		elements = append(elements, element.UIElement{
			ElementType: element.TypeOCRText,
			Description: d.Text,
			BBox:        geometry.Clamp(element.BBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}, size),
			Confidence:  clamp01(d.Confidence),
			Metadata: map[string]interface{}{
				"source": "ocr",
				"step":   step,
			},
		})
	}

	e.logger.Debug("OCR step complete",
		"step", step,
		"region", region.String(),
		"detections", len(detections),
		"hits", len(hits))

	return elements
}

func (e *Engine) calibrate(elements []element.UIElement, size element.Size) []element.UIElement {
	if e.opts.Calibrator.IsZero() {
		return elements
	}
	for i := range elements {
		elements[i].BBox = e.opts.Calibrator.Apply(elements[i].BBox, size)
	}
	return elements
}

func (e *Engine) record(ctx context.Context, description, target string, strategy Strategy, results []element.UIElement, locateErr error, start time.Time) {
	if e.recorder == nil {
		return
	}

	attempt := &Attempt{
		ID:          uuid.New().String(),
		Description: description,
		Target:      target,
		Strategy:    strategy,
		ResultCount: len(results),
		Duration:    time.Since(start),
		CreatedAt:   time.Now(),
	}
	if len(results) > 0 {
		top := results[0].Clone()
		attempt.Top = &top
	}
	if locateErr != nil {
		attempt.Error = locateErr.Error()
	}

	if err := e.recorder.RecordAttempt(ctx, attempt); err != nil {
		e.logger.Warn("Failed to record locate attempt", "attemptId", attempt.ID, "error", err)
	}
}

// ClearCache drops every cached vision result.
func (e *Engine) ClearCache(ctx context.Context) error {
	if err := e.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear result cache: %w", err)
	}
	e.logger.Info("Result cache cleared")
	return nil
}

func fullImage(size element.Size) element.BBox {
	return element.BBox{X1: 0, Y1: 0, X2: size.Width, Y2: size.Height}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
