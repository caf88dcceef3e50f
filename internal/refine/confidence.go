package refine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Tier is the coarse confidence level of a refined symbol.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// Reason records which rule produced a Confidence.
type Reason string

const (
	ReasonAIGuess      Reason = "ai_guess"       // no knowledge-base evidence
	ReasonVerified     Reason = "verified"       // strong match, label replaced
	ReasonWeakMatch    Reason = "weak_match"     // match too far, label kept
	ReasonCoarseToFine Reason = "coarse_to_fine" // coarse class refined to a subtype
)

// Confidence is the tagged confidence of a refined symbol. Distance is set
// whenever a knowledge-base match was consulted.
type Confidence struct {
	Tier     Tier
	Distance *float64
	Reason   Reason

	// From is the coarse class a coarse_to_fine result was refined from.
	From string
}

// Low is a detector guess without knowledge-base support.
func Low() Confidence {
	return Confidence{Tier: TierLow, Reason: ReasonAIGuess}
}

// High is a verified match at distance d.
func High(d float64) Confidence {
	return Confidence{Tier: TierHigh, Distance: &d, Reason: ReasonVerified}
}

// Weak is a match too far away to trust.
func Weak(d float64) Confidence {
	return Confidence{Tier: TierMedium, Distance: &d, Reason: ReasonWeakMatch}
}

// Refined is a coarse detector label narrowed by the knowledge base.
func Refined(d float64, from string) Confidence {
	return Confidence{Tier: TierMedium, Distance: &d, Reason: ReasonCoarseToFine, From: from}
}

// String renders the human-readable label, e.g. "High (Verified by DB: 12.34)".
func (c Confidence) String() string {
	switch c.Reason {
	case ReasonVerified:
		return fmt.Sprintf("High (Verified by DB: %.2f)", c.distance())
	case ReasonWeakMatch:
		return fmt.Sprintf("Medium (DB match weak: %.2f)", c.distance())
	case ReasonCoarseToFine:
		return fmt.Sprintf("Medium (Refined from %s by DB: %.2f)", c.From, c.distance())
	case ReasonAIGuess:
		return "Low (AI Guess)"
	}
	if c.Distance != nil {
		return fmt.Sprintf("%s (DB: %.2f)", c.Tier, *c.Distance)
	}
	return string(c.Tier)
}

func (c Confidence) distance() float64 {
	if c.Distance == nil {
		return 0
	}
	return *c.Distance
}

type confidenceJSON struct {
	Tier     Tier     `json:"tier"`
	Distance *float64 `json:"distance,omitempty"`
	Reason   Reason   `json:"reason,omitempty"`
	From     string   `json:"from,omitempty"`
	Label    string   `json:"label"`
}

// MarshalJSON writes the tagged object form.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(confidenceJSON{
		Tier:     c.Tier,
		Distance: c.Distance,
		Reason:   c.Reason,
		From:     c.From,
		Label:    c.String(),
	})
}

// UnmarshalJSON accepts the object form and the plain string form written
// by earlier result files.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseConfidence(s)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var obj confidenceJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Tier == "" && obj.Label != "" {
		parsed, err := ParseConfidence(obj.Label)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	*c = Confidence{Tier: obj.Tier, Distance: obj.Distance, Reason: obj.Reason, From: obj.From}
	return nil
}

var (
	legacyDistance = regexp.MustCompile(`(-?[0-9]+(?:\.[0-9]+)?)\)\s*$`)
	legacyFrom     = regexp.MustCompile(`Refined from (\S+) by DB`)
)

// ParseConfidence reads the human-readable form produced by String.
func ParseConfidence(s string) (Confidence, error) {
	s = strings.TrimSpace(s)
	var c Confidence
	switch {
	case strings.HasPrefix(s, string(TierHigh)):
		c.Tier, c.Reason = TierHigh, ReasonVerified
	case strings.HasPrefix(s, string(TierMedium)):
		c.Tier, c.Reason = TierMedium, ReasonWeakMatch
		if m := legacyFrom.FindStringSubmatch(s); m != nil {
			c.Reason, c.From = ReasonCoarseToFine, m[1]
		}
	case strings.HasPrefix(s, string(TierLow)):
		c.Tier, c.Reason = TierLow, ReasonAIGuess
	default:
		return Confidence{}, fmt.Errorf("unrecognized confidence %q", s)
	}
	if m := legacyDistance.FindStringSubmatch(s); m != nil {
		if d, err := strconv.ParseFloat(m[1], 64); err == nil {
			c.Distance = &d
		}
	}
	return c, nil
}
