package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseErrorWrapsCause(t *testing.T) {
	cause := stderrors.New("unexpected end of JSON input")
	err := NewParseError(`[{"bbox": [1,2`, cause)

	assert.Equal(t, ErrorParseFailed, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "PARSE_FAILED")
	assert.True(t, IsParseError(err))
	assert.False(t, IsCollaboratorError(err))
}

func TestParseErrorTruncatesExcerpt(t *testing.T) {
	raw := make([]byte, 500)
	for i := range raw {
		raw[i] = 'x'
	}
	err := NewParseError(string(raw), nil)

	assert.Len(t, err.Details["excerpt"], 200)
	assert.Equal(t, 500, err.Details["length"])
	assert.NotContains(t, err.Error(), "caused by")
}

func TestCollaboratorErrorDetectedThroughWrapping(t *testing.T) {
	err := NewCollaboratorError("vision", stderrors.New("status 502"))
	wrapped := fmt.Errorf("vision step: %w", err)

	assert.True(t, IsCollaboratorError(wrapped))
	assert.False(t, IsParseError(wrapped))
	assert.False(t, IsCollaboratorError(stderrors.New("plain")))
}

func TestToMap(t *testing.T) {
	err := NewCollaboratorError("ocr", stderrors.New("tesseract missing"))
	m := err.ToMap()

	require.Equal(t, "COLLABORATOR_FAILED", m["error_code"])
	assert.Equal(t, "ocr", m["collaborator"])
	assert.Equal(t, "tesseract missing", m["cause"])
	assert.Equal(t, "ocr call failed", m["message"])
}
