package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/locator"
)

func newMockRecorder(t *testing.T) (*PostgresRecorder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRecorderFromDB(db), mock
}

func TestSanitizeConfidence(t *testing.T) {
	assert.Equal(t, 0.0, sanitizeConfidence(-0.2))
	assert.Equal(t, 1.0, sanitizeConfidence(1.7))
	assert.Equal(t, 0.8765, sanitizeConfidence(0.87654))
	assert.Equal(t, 0.5, sanitizeConfidence(0.5))
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"description":"Sa\u0000ve\u0007"}`)
	assert.Equal(t, `{"description":"Save "}`, string(sanitizeJSONForPostgres(in)))
}

func TestRecordAttemptWithTopElement(t *testing.T) {
	rec, mock := newMockRecorder(t)

	attempt := &locator.Attempt{
		ID:          "0b6f7d0e-5f55-4a8e-9a7f-3f1f0b0c2b11",
		Description: "Save button",
		Target:      "Save",
		Strategy:    locator.StrategyHybrid,
		ResultCount: 1,
		Top: &element.UIElement{
			ElementType: element.TypeOCRText,
			Description: "Save",
			BBox:        element.BBox{X1: 780, Y1: 450, X2: 820, Y2: 470},
			Confidence:  0.93456,
		},
		Duration:  1500 * time.Millisecond,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO locator.locate_history").
		WithArgs(
			attempt.ID,
			"Save button",
			"Save",
			"hybrid",
			int64(1),
			"{780,450,820,470}",
			0.9346,
			sqlmock.AnyArg(),
			int64(1500),
			"",
			attempt.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, rec.RecordAttempt(context.Background(), attempt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttemptWithoutResults(t *testing.T) {
	rec, mock := newMockRecorder(t)

	attempt := &locator.Attempt{
		ID:          "8d1b2c4e-0000-4000-8000-000000000001",
		Description: "Missing widget",
		Strategy:    locator.StrategyVisionOnly,
		Error:       "failed to parse model response",
	}

	mock.ExpectExec("INSERT INTO locator.locate_history").
		WithArgs(
			attempt.ID,
			"Missing widget",
			"",
			"vision_only",
			int64(0),
			nil,
			nil,
			nil,
			int64(0),
			"failed to parse model response",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, rec.RecordAttempt(context.Background(), attempt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttemptRequiresID(t *testing.T) {
	rec, mock := newMockRecorder(t)

	err := rec.RecordAttempt(context.Background(), &locator.Attempt{Description: "x"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAttemptWrapsDatabaseError(t *testing.T) {
	rec, mock := newMockRecorder(t)

	mock.ExpectExec("INSERT INTO locator.locate_history").
		WillReturnError(errors.New("connection reset"))

	err := rec.RecordAttempt(context.Background(), &locator.Attempt{
		ID:       "8d1b2c4e-0000-4000-8000-000000000002",
		Strategy: locator.StrategyOCROnly,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy=ocr_only")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRecentAttempts(t *testing.T) {
	rec, mock := newMockRecorder(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "description", "target", "strategy", "result_count",
		"top_bbox", "top_confidence", "duration_ms", "error_message", "created_at",
	}).
		AddRow("a", "Save button", "Save", "hybrid", 1, "{780,450,820,470}", 0.93, int64(1200), nil, created).
		AddRow("b", "Gone", nil, "vision_only", 0, nil, nil, int64(800), "failed to parse model response", created)

	mock.ExpectQuery("SELECT .* FROM locator.locate_history").
		WithArgs(20).
		WillReturnRows(rows)

	got, err := rec.RecentAttempts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Save", got[0].Target)
	require.NotNil(t, got[0].TopBBox)
	assert.Equal(t, element.BBox{X1: 780, Y1: 450, X2: 820, Y2: 470}, *got[0].TopBBox)
	assert.InDelta(t, 0.93, got[0].TopConfidence, 1e-9)

	assert.Empty(t, got[1].Target)
	assert.Nil(t, got[1].TopBBox)
	assert.Equal(t, "failed to parse model response", got[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	rec, mock := newMockRecorder(t)

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS locator").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, rec.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresRecorderRequiresURL(t *testing.T) {
	_, err := NewPostgresRecorder("")
	assert.Error(t, err)
}
