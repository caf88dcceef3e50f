package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolID(t *testing.T) {
	assert.Equal(t, "gate_valve_valve", SymbolID("gate_valve", CategoryValve))
	assert.Equal(t, "x_misc", SymbolID("x", CategoryMisc))
}

func TestGuessCategory(t *testing.T) {
	tests := []struct {
		label string
		want  Category
	}{
		{"gate_valve", CategoryValve},
		{"pump_isolation_valve", CategoryValve},
		{"centrifugal_pump", CategoryPump},
		{"storage_tank", CategoryVessel},
		{"pressure_vessel", CategoryVessel},
		{"pressure_indicator", CategoryInstrument},
		{"flow_transmitter", CategoryInstrument},
		{"Level_Transmitter", CategoryInstrument},
		{"heat_exchanger", CategoryMisc},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessCategory(tt.label))
		})
	}
}

func TestLabelFromFilename(t *testing.T) {
	assert.Equal(t, "gate_valve", LabelFromFilename("gate_valve.png"))
	assert.Equal(t, "ball_check_valve", LabelFromFilename("/refs/Ball Check Valve.JPG"))
	assert.Equal(t, "pump", LabelFromFilename("PUMP.jpeg"))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryValve, NormalizeCategory(" Valve "))
	assert.Equal(t, CategoryMisc, NormalizeCategory(""))
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.True(t, NormalizeCategory(" PUMP").Valid())
	assert.False(t, Category("valve_misc").Valid())
	assert.False(t, Category("equipment").Valid())
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 1e-7}
	got, err := decodeVector(encodeVector(v))
	assert.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRankByDistance(t *testing.T) {
	entries := []Entry{
		{ID: "far", Embedding: []float32{10, 0}},
		{ID: "near", Embedding: []float32{1, 0}},
		{ID: "wrong_dim", Embedding: []float32{0}},
		{ID: "mid", Embedding: []float32{3, 4}},
	}
	got, skipped := rankByDistance(entries, []float32{0, 0}, 2)
	assert.Equal(t, 1, skipped)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "near", got[0].ID)
		assert.Equal(t, 1.0, got[0].Distance)
		assert.Equal(t, "mid", got[1].ID)
		assert.Equal(t, 5.0, got[1].Distance)
	}

	got, skipped = rankByDistance(nil, []float32{0, 0}, 1)
	assert.Empty(t, got)
	assert.Zero(t, skipped)
}
