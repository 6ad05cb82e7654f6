package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/ui-locator/internal/element"
)

// Task types handled by the locate worker
const (
	TypeLocateElement = "locate:element"
	TypeClearCache    = "locate:clear_cache"
)

// LocatePayload is the body of a locate:element task. An empty ImageBase64 makes the
// worker capture the screen itself.
type LocatePayload struct {
	Description string `json:"description"`
	Target      string `json:"target,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	UseCache    *bool  `json:"use_cache,omitempty"`
	UseOCR      *bool  `json:"use_ocr,omitempty"`
	Monitor     *int   `json:"monitor,omitempty"`
}

func (p LocatePayload) useCache() bool { return p.UseCache == nil || *p.UseCache }
func (p LocatePayload) useOCR() bool   { return p.UseOCR == nil || *p.UseOCR }

// LocateResult is written to the task's result once a locate completes.
type LocateResult struct {
	Elements   []element.UIElement `json:"elements"`
	DurationMs int64               `json:"duration_ms"`
}

// NewLocateTask builds a locate:element task. Locate results are small and
// short-lived, so they are retained for an hour.
func NewLocateTask(payload LocatePayload, opts ...asynq.Option) (*asynq.Task, error) {
	if payload.Description == "" {
		return nil, fmt.Errorf("description is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal locate payload: %w", err)
	}
	opts = append([]asynq.Option{asynq.Retention(time.Hour)}, opts...)
	return asynq.NewTask(TypeLocateElement, data, opts...), nil
}

// NewClearCacheTask builds a locate:clear_cache task.
func NewClearCacheTask(opts ...asynq.Option) *asynq.Task {
	return asynq.NewTask(TypeClearCache, nil, opts...)
}
