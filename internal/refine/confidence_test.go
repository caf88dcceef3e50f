package refine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidence_String(t *testing.T) {
	assert.Equal(t, "High (Verified by DB: 12.35)", High(12.346).String())
	assert.Equal(t, "Medium (DB match weak: 80.00)", Weak(80).String())
	assert.Equal(t, "Medium (Refined from pump by DB: 70.10)", Refined(70.1, "pump").String())
	assert.Equal(t, "Low (AI Guess)", Low().String())
}

func TestConfidence_JSON(t *testing.T) {
	data, err := json.Marshal(High(12.3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"High","distance":12.3,"reason":"verified","label":"High (Verified by DB: 12.30)"}`, string(data))

	var back Confidence
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, High(12.3), back)

	data, err = json.Marshal(Low())
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"Low","reason":"ai_guess","label":"Low (AI Guess)"}`, string(data))
}

func TestConfidence_LegacyString(t *testing.T) {
	tests := []struct {
		in   string
		want Confidence
	}{
		{`"High (Verified by DB: 12.34)"`, High(12.34)},
		{`"Medium (DB match weak: 80.00)"`, Weak(80)},
		{`"Medium (Refined from valve by DB: 75.50)"`, Refined(75.5, "valve")},
		{`"Low (AI Guess)"`, Low()},
		{`{"label":"High (Verified by DB: 1.00)"}`, High(1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var c Confidence
			require.NoError(t, json.Unmarshal([]byte(tt.in), &c))
			assert.Equal(t, tt.want, c)
		})
	}

	var c Confidence
	assert.Error(t, json.Unmarshal([]byte(`"Certain"`), &c))
}

func TestSymbol_JSONKeys(t *testing.T) {
	s := Symbol{
		FinalLabel:    "gate_valve",
		OriginalLabel: "valve",
		Confidence:    High(5),
		BBox:          [4]float64{1, 2, 3, 4},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "final_label")
	assert.Contains(t, raw, "original_ai_label")
	assert.Contains(t, raw, "confidence")
	assert.JSONEq(t, `[1,2,3,4]`, string(raw["bbox"]))
}
