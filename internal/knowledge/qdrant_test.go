package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
)

func TestPointID_Stable(t *testing.T) {
	a := pointID("gate_valve_valve")
	assert.Equal(t, a, pointID("gate_valve_valve"))
	assert.NotEqual(t, a, pointID("gate_valve_misc"))
	assert.Len(t, a, 36)
}

func TestPayloadRoundTrip(t *testing.T) {
	e := Entry{
		ID:              "gate_valve_valve",
		Label:           "gate_valve",
		Category:        CategoryValve,
		Standard:        DefaultStandard,
		SourceImagePath: "refs/gate_valve.png",
	}
	assert.Equal(t, e, entryFromPayload(entryPayload(e)))

	noSource := e
	noSource.SourceImagePath = ""
	payload := entryPayload(noSource)
	assert.NotContains(t, payload, "source_image")
	assert.Equal(t, noSource, entryFromPayload(payload))
}

func TestOpenQdrant_Validation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  QdrantConfig
	}{
		{"no address", QdrantConfig{Collection: "c", Dimension: 3}},
		{"no collection", QdrantConfig{Address: "localhost:6334", Dimension: 3}},
		{"no dimension", QdrantConfig{Address: "localhost:6334", Collection: "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenQdrant(ctx, tt.cfg)
			assert.True(t, perrors.HasCode(err, perrors.ErrorInvalidConfiguration))
		})
	}
}
