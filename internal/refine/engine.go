package refine

import (
	"context"
	"image"
	"math"
	"strings"

	"github.com/ironsheep/pid-symbol-tools/internal/detection"
	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
	"github.com/ironsheep/pid-symbol-tools/internal/knowledge"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
	"github.com/ironsheep/pid-symbol-tools/internal/metrics"
)

// Matcher finds the nearest reference symbol for a crop.
// *knowledge.Base implements it.
type Matcher interface {
	Search(ctx context.Context, img image.Image, k int) (*knowledge.Match, error)
}

// Config holds the refinement thresholds. Distances are in the units of
// the configured embedder and must be calibrated per backend.
type Config struct {
	// StrongThreshold: a match closer than this replaces the detector label.
	StrongThreshold float64 `mapstructure:"strong_threshold" json:"strong_threshold"`

	// WeakThreshold bounds the coarse-to-fine override. 0 means unbounded.
	WeakThreshold float64 `mapstructure:"weak_threshold" json:"weak_threshold"`

	// MinSymbolSize is the smallest accepted box side in pixels.
	MinSymbolSize int `mapstructure:"min_symbol_size" json:"min_symbol_size"`

	// CoarseClasses are generic detector labels eligible for the
	// coarse-to-fine override.
	CoarseClasses []string `mapstructure:"coarse_classes" json:"coarse_classes"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		StrongThreshold: 60,
		WeakThreshold:   0,
		MinSymbolSize:   15,
		CoarseClasses:   []string{"valve", "pump"},
	}
}

// Engine validates raw detections, crops them and relabels them against
// the knowledge base.
type Engine struct {
	cfg     Config
	matcher Matcher
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewEngine creates an Engine. matcher and m may be nil: without a
// matcher every kept symbol keeps its detector label at Low confidence.
func NewEngine(cfg Config, matcher Matcher, m *metrics.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		matcher: matcher,
		metrics: m,
		logger:  logging.NewLogger("refine"),
	}
}

// Config returns the engine's thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// Refine processes every raw detection for one tile. It never fails: each
// detection either yields a Symbol or is counted under a SkipReason.
func (e *Engine) Refine(ctx context.Context, tile image.Image, raws []detection.RawDetection, format detection.BoxFormat) ([]Symbol, Report) {
	report := Report{Outcomes: make([]Outcome, 0, len(raws))}
	symbols := make([]Symbol, 0, len(raws))

	for i, raw := range raws {
		o := e.refineOne(ctx, tile, raw, format)
		o.Index = i
		report.add(o)
		if o.Symbol != nil {
			symbols = append(symbols, *o.Symbol)
		}
		e.observe(o)
	}
	return symbols, report
}

func (e *Engine) refineOne(ctx context.Context, tile image.Image, raw detection.RawDetection, format detection.BoxFormat) Outcome {
	out := Outcome{Label: raw.Label}

	box, skip := ToPixelBox(raw.Box, format, tile.Bounds().Dx(), tile.Bounds().Dy())
	if skip != SkipNone {
		out.Skip = skip
		if skip != SkipTooSmall {
			e.logger.Debug("skipping detection", "label", raw.Label, "reason", string(skip), "box", raw.Box)
		}
		return out
	}
	minSide := float64(e.cfg.MinSymbolSize)
	if box[2]-box[0] < minSide || box[3]-box[1] < minSide {
		out.Skip = SkipTooSmall
		return out
	}

	origin := tile.Bounds().Min
	region := image.Rect(
		int(math.Floor(box[0])), int(math.Floor(box[1])),
		int(math.Ceil(box[2])), int(math.Ceil(box[3])),
	).Add(origin)
	crop, err := imaging.CropRegion(tile, region)
	if err != nil {
		e.logger.Warn("crop failed", "label", raw.Label, "error", err)
		out.Skip = SkipCrop
		return out
	}

	label, conf := e.decide(ctx, crop, raw.Label)
	out.Symbol = &Symbol{
		FinalLabel:    label,
		OriginalLabel: raw.Label,
		Confidence:    conf,
		BBox:          box,
	}
	return out
}

// decide applies the knowledge-base rules to one crop.
func (e *Engine) decide(ctx context.Context, crop image.Image, rawLabel string) (string, Confidence) {
	if e.matcher == nil {
		return rawLabel, Low()
	}

	match, err := e.matcher.Search(ctx, crop, 1)
	if err != nil {
		if perrors.HasCode(err, perrors.ErrorInvalidConfiguration) {
			e.logger.Warn("knowledge base unusable, keeping detector label", "label", rawLabel, "error", err)
		} else {
			e.logger.Debug("knowledge base query failed, keeping detector label", "label", rawLabel, "error", err)
		}
		return rawLabel, Low()
	}
	if match == nil {
		return rawLabel, Low()
	}
	if e.metrics != nil {
		e.metrics.MatchDistance.Observe(match.Distance)
	}

	if match.Distance < e.cfg.StrongThreshold {
		return match.Label, High(match.Distance)
	}

	withinWeak := e.cfg.WeakThreshold <= 0 || match.Distance < e.cfg.WeakThreshold
	if class, ok := e.coarseClass(rawLabel, match); ok && withinWeak {
		return match.Label, Refined(match.Distance, class)
	}
	return rawLabel, Weak(match.Distance)
}

// coarseClass returns the configured coarse class named by rawLabel when
// the match is a subtype of it.
func (e *Engine) coarseClass(rawLabel string, match *knowledge.Match) (string, bool) {
	raw := strings.ToLower(rawLabel)
	matchLabel := strings.ToLower(match.Label)
	for _, class := range e.cfg.CoarseClasses {
		class = strings.ToLower(strings.TrimSpace(class))
		if class == "" || !strings.Contains(raw, class) {
			continue
		}
		if strings.EqualFold(string(match.Category), class) || strings.Contains(matchLabel, class) {
			return class, true
		}
	}
	return "", false
}

func (e *Engine) observe(o Outcome) {
	if e.metrics == nil {
		return
	}
	outcome := "kept"
	if !o.Kept() {
		outcome = string(o.Skip)
	}
	e.metrics.Detections.WithLabelValues(outcome).Inc()
}

// ToPixelBox converts a raw box in the given format into (left, top,
// right, bottom) pixels clamped to a width×height tile.
func ToPixelBox(raw []float64, format detection.BoxFormat, width, height int) ([4]float64, SkipReason) {
	var box [4]float64
	if len(raw) != 4 {
		return box, SkipMalformed
	}
	for _, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return box, SkipMalformed
		}
	}

	x1, y1, x2, y2 := raw[0], raw[1], raw[2], raw[3]
	if format.Order == detection.OrderYXYX {
		x1, y1, x2, y2 = raw[1], raw[0], raw[3], raw[2]
	}
	if format.Scale == detection.ScaleNormalized1000 {
		sx, sy := float64(width)/1000, float64(height)/1000
		x1, x2 = x1*sx, x2*sx
		y1, y2 = y1*sy, y2*sy
	}

	w, h := float64(width), float64(height)
	box = [4]float64{clamp(x1, 0, w), clamp(y1, 0, h), clamp(x2, 0, w), clamp(y2, 0, h)}
	if box[2] <= box[0] || box[3] <= box[1] {
		return box, SkipDegenerate
	}
	return box, SkipNone
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
