package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/errors"
	"github.com/adverant/nexus/ui-locator/internal/locator"
	"github.com/adverant/nexus/ui-locator/internal/logging"
	"github.com/adverant/nexus/ui-locator/internal/screen"
)

// DefaultLocateTimeout bounds one locate task.
const DefaultLocateTimeout = 2 * time.Minute

// Locator is the part of the locate engine the worker drives.
type Locator interface {
	Locate(ctx context.Context, description string, shot *screen.Screenshot, target string, opts locator.LocateOptions) ([]element.UIElement, error)
	ClearCache(ctx context.Context) error
}

// Handler runs locate tasks against a Locator.
type Handler struct {
	locator Locator
	timeout time.Duration
	logger  *logging.Logger
}

// NewHandler creates a task handler. A non-positive timeout uses DefaultLocateTimeout.
func NewHandler(l Locator, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	return &Handler{
		locator: l,
		timeout: timeout,
		logger:  logging.NewLogger("LocateHandler"),
	}
}

// Register routes both task types on mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeLocateElement, h.HandleLocate)
	mux.HandleFunc(TypeClearCache, h.HandleClearCache)
}

// HandleLocate processes a locate:element task. Malformed payloads and undecodable
// images are not retried.
func (h *Handler) HandleLocate(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload LocatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal locate payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Description == "" {
		return fmt.Errorf("locate payload has no description: %w", asynq.SkipRetry)
	}

	var shot *screen.Screenshot
	if payload.ImageBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(payload.ImageBase64)
		if err != nil {
			return fmt.Errorf("failed to decode base64 image: %v: %w", err, asynq.SkipRetry)
		}
		shot, err = screen.Decode(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("failed to decode image: %v: %w", err, asynq.SkipRetry)
		}
	}

	taskID, _ := asynq.GetTaskID(ctx)
	h.logger.Info("Locating element",
		"taskId", taskID,
		"description", payload.Description,
		"target", payload.Target,
		"captured", shot == nil)

	locateCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results, err := h.locator.Locate(locateCtx, payload.Description, shot, payload.Target, locator.LocateOptions{
		SkipCache: !payload.useCache(),
		SkipOCR:   !payload.useOCR(),
		Monitor:   payload.Monitor,
	})

	duration := time.Since(startTime)

	if locateCtx.Err() == context.DeadlineExceeded {
		h.logger.Error("Locate timed out", "taskId", taskID, "timeout", h.timeout.String())
		return fmt.Errorf("locate timed out after %v", h.timeout)
	}
	if err != nil {
		fields := []interface{}{"taskId", taskID, "error", err}
		if errors.IsParseError(err) {
			fields = append(fields, "parseError", true)
		}
		h.logger.Error("Locate failed", fields...)
		return fmt.Errorf("locate failed: %w", err)
	}

	h.logger.Info("Locate completed",
		"taskId", taskID,
		"results", len(results),
		"durationMs", duration.Milliseconds())

	if w := task.ResultWriter(); w != nil {
		data, err := json.Marshal(LocateResult{Elements: results, DurationMs: duration.Milliseconds()})
		if err != nil {
			return fmt.Errorf("failed to marshal locate result: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write locate result: %w", err)
		}
	}

	return nil
}

// HandleClearCache processes a locate:clear_cache task.
func (h *Handler) HandleClearCache(ctx context.Context, _ *asynq.Task) error {
	if err := h.locator.ClearCache(ctx); err != nil {
		return fmt.Errorf("failed to clear result cache: %w", err)
	}
	h.logger.Info("Result cache cleared")
	return nil
}
