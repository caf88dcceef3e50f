package knowledge

import (
	"path/filepath"
	"strings"
)

// Category groups reference symbols by equipment family.
type Category string

const (
	CategoryValve      Category = "valve"
	CategoryPump       Category = "pump"
	CategoryVessel     Category = "vessel"
	CategoryInstrument Category = "instrument"
	CategoryMisc       Category = "misc"
)

// Categories lists every accepted category.
var Categories = []Category{CategoryValve, CategoryPump, CategoryVessel, CategoryInstrument, CategoryMisc}

// Valid reports whether c is one of Categories. Symbol ids join label and
// category with "_", so an open category set would let "gate"/"valve_misc"
// collide with "gate_valve"/"misc".
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DefaultStandard is recorded on every entry that does not name one.
const DefaultStandard = "ISA-5.1"

// Entry is one learned reference symbol.
type Entry struct {
	ID              string    `json:"id"`
	Label           string    `json:"label"`
	Category        Category  `json:"category"`
	Standard        string    `json:"standard"`
	SourceImagePath string    `json:"source_image,omitempty"`
	Embedding       []float32 `json:"-"`
}

// Match is a stored entry together with its distance from a query.
type Match struct {
	Entry
	Distance float64 `json:"distance"`
}

// SymbolID is the deterministic key of a reference entry.
func SymbolID(label string, category Category) string {
	return label + "_" + string(category)
}

// NormalizeCategory lowercases and trims c. Empty input yields CategoryMisc.
// The result is not checked; see Category.Valid.
func NormalizeCategory(c string) Category {
	c = strings.ToLower(strings.TrimSpace(c))
	if c == "" {
		return CategoryMisc
	}
	return Category(c)
}

// GuessCategory infers a category from a symbol label. The first rule that
// matches wins, so "pump_isolation_valve" is a valve.
func GuessCategory(label string) Category {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "valve"):
		return CategoryValve
	case strings.Contains(l, "pump"):
		return CategoryPump
	case strings.Contains(l, "tank"), strings.Contains(l, "vessel"):
		return CategoryVessel
	case strings.Contains(l, "indicator"), strings.Contains(l, "transmitter"):
		return CategoryInstrument
	default:
		return CategoryMisc
	}
}

// LabelFromFilename turns "Gate Valve.png" into "gate_valve".
func LabelFromFilename(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.ToLower(stem), " ", "_")
}
