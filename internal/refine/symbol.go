package refine

// Symbol is a detection that survived validation, with its final label.
// BBox is (left, top, right, bottom) in pixels relative to the tile.
type Symbol struct {
	FinalLabel    string     `json:"final_label"`
	OriginalLabel string     `json:"original_ai_label"`
	Confidence    Confidence `json:"confidence"`
	BBox          [4]float64 `json:"bbox"`
}

// SkipReason says why a raw detection produced no Symbol.
type SkipReason string

const (
	SkipNone       SkipReason = ""
	SkipMalformed  SkipReason = "malformed_box"  // not exactly four finite numbers
	SkipDegenerate SkipReason = "degenerate_box" // zero or negative area after clamping
	SkipTooSmall   SkipReason = "too_small"      // below the minimum symbol size, treated as noise
	SkipCrop       SkipReason = "crop_failed"
)

// Outcome is the result of refining one raw detection: exactly one of
// Symbol and Skip is set.
type Outcome struct {
	Index  int        `json:"index"`
	Label  string     `json:"label"`
	Symbol *Symbol    `json:"symbol,omitempty"`
	Skip   SkipReason `json:"skip,omitempty"`
}

// Kept reports whether the detection produced a Symbol.
func (o Outcome) Kept() bool {
	return o.Symbol != nil
}

// Report summarizes a Refine call.
type Report struct {
	Total    int                `json:"total"`
	Kept     int                `json:"kept"`
	Skipped  map[SkipReason]int `json:"skipped,omitempty"`
	Outcomes []Outcome          `json:"outcomes"`
}

func (r *Report) add(o Outcome) {
	r.Total++
	r.Outcomes = append(r.Outcomes, o)
	if o.Kept() {
		r.Kept++
		return
	}
	if r.Skipped == nil {
		r.Skipped = make(map[SkipReason]int)
	}
	r.Skipped[o.Skip]++
}
