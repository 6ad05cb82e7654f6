package locator

import (
	"context"
	"time"

	"github.com/adverant/nexus/ui-locator/internal/element"
)

// Attempt summarizes one Locate call for the history log.
type Attempt struct {
	ID          string
	Description string
	Target      string
	Strategy    Strategy
	ResultCount int
	Top         *element.UIElement
	Duration    time.Duration
	Error       string
	CreatedAt   time.Time
}

// Recorder persists locate attempts. Failures are logged by the engine and never
// affect the locate result.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt *Attempt) error
}
