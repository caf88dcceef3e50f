package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_ErrorString(t *testing.T) {
	err := NewEmbeddingError("gate_valve_valve", io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "EMBEDDING_FAILED")
	assert.Contains(t, err.Error(), "caused by")

	plain := NewInvalidConfigurationError("tiling.overlap", "overlap %d must be smaller than tile size %d", 10, 5)
	assert.Equal(t, "INVALID_CONFIGURATION: overlap 10 must be smaller than tile size 5", plain.Error())
}

func TestPipelineError_Unwrap(t *testing.T) {
	err := NewPersistenceError("out.json", io.ErrShortWrite)
	assert.True(t, stderrors.Is(err, io.ErrShortWrite))
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("tile 3: %w", NewDetectionError("page_1_tile_0_0", io.EOF))
	assert.True(t, HasCode(wrapped, ErrorDetectionFailed))
	assert.False(t, HasCode(wrapped, ErrorEmbeddingFailed))
	assert.False(t, HasCode(io.EOF, ErrorDetectionFailed))
	assert.False(t, HasCode(nil, ErrorDetectionFailed))
}

func TestPipelineError_ToMap(t *testing.T) {
	err := NewMalformedDetectionError("box must have 4 coordinates", []float64{1, 2})
	m := err.ToMap()
	require.Equal(t, "MALFORMED_DETECTION", m["error_code"])
	assert.Equal(t, []float64{1, 2}, m["box"])
	_, hasCause := m["cause"]
	assert.False(t, hasCause)

	m = NewDetectionError("t1", io.EOF).ToMap()
	assert.Equal(t, "t1", m["subject"])
	assert.Equal(t, "EOF", m["cause"])
}
