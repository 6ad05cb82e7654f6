/**
 * Tesseract OCR reader
 *
 * Word-level text detection with gosseract. The client is created on first use and
 * reused for every call; Tesseract is not safe for concurrent use, so calls are
 * serialized.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/draw"

	"github.com/adverant/nexus/ui-locator/internal/logging"
)

// MinOCRDimension is the smallest side Tesseract reads reliably; smaller images are upscaled.
const MinOCRDimension = 150

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Languages      []string
	TessdataPrefix string
	// Lines reports whole text lines instead of single words.
	Lines bool
}

// TesseractReader implements Reader with a lazily created gosseract client.
type TesseractReader struct {
	cfg    TesseractConfig
	logger *logging.Logger

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	client *gosseract.Client
}

func NewTesseractReader(cfg TesseractConfig) *TesseractReader {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &TesseractReader{
		cfg:    cfg,
		logger: logging.NewLogger("TesseractReader"),
	}
}

func (t *TesseractReader) init() {
	start := time.Now()
	client := gosseract.NewClient()

	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			client.Close()
			t.initErr = fmt.Errorf("failed to set tessdata prefix: %w", err)
			return
		}
	}
	if err := client.SetLanguage(t.cfg.Languages...); err != nil {
		client.Close()
		t.initErr = fmt.Errorf("failed to set OCR language: %w", err)
		return
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		t.initErr = fmt.Errorf("failed to set PSM: %w", err)
		return
	}

	t.client = client
	t.logger.Info("Tesseract client initialized",
		"languages", strings.Join(t.cfg.Languages, "+"),
		"duration", time.Since(start))
}

// Probe forces initialization and reports whether the reader can be used.
func (t *TesseractReader) Probe() error {
	t.initOnce.Do(t.init)
	return t.initErr
}

func (t *TesseractReader) ReadText(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.Probe(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	scaled, scale := upscale(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil, fmt.Errorf("tesseract reader is closed")
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	level := gosseract.RIL_WORD
	if t.cfg.Lines {
		level = gosseract.RIL_TEXTLINE
	}
	boxes, err := t.client.GetBoundingBoxes(level)
	if err != nil {
		return nil, fmt.Errorf("failed to get boxes: %w", err)
	}

	detections := make([]Detection, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		r := scaleBack(box.Box, scale, bounds.Dx(), bounds.Dy())
		if r.Empty() {
			continue
		}
		detections = append(detections, FromRect(r, text, box.Confidence/100))
	}

	t.logger.Debug("OCR pass complete",
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"scale", scale,
		"detections", len(detections))

	return detections, nil
}

// Close releases the Tesseract client.
func (t *TesseractReader) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

// upscale enlarges img so its smaller side is at least MinOCRDimension. The returned
// image always has a (0,0) origin.
func upscale(img image.Image) (image.Image, float64) {
	b := img.Bounds()
	minDim := min(b.Dx(), b.Dy())
	if minDim >= MinOCRDimension {
		if b.Min == (image.Point{}) {
			return img, 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst, 1
	}

	scale := float64(MinOCRDimension) / float64(minDim)
	w := int(math.Ceil(float64(b.Dx()) * scale))
	h := int(math.Ceil(float64(b.Dy()) * scale))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, scale
}

// scaleBack maps a box found on the upscaled image to the original, clamped to w x h.
func scaleBack(r image.Rectangle, scale float64, w, h int) image.Rectangle {
	if scale != 1 {
		r = image.Rect(
			int(math.Floor(float64(r.Min.X)/scale)),
			int(math.Floor(float64(r.Min.Y)/scale)),
			int(math.Ceil(float64(r.Max.X)/scale)),
			int(math.Ceil(float64(r.Max.Y)/scale)),
		)
	}
	return r.Intersect(image.Rect(0, 0, w, h))
}
