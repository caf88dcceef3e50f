package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ironsheep/pid-symbol-tools/internal/detection"
	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
	"github.com/ironsheep/pid-symbol-tools/internal/metrics"
	"github.com/ironsheep/pid-symbol-tools/internal/refine"
)

// Options configures a Driver.
type Options struct {
	Source   TileSource
	Detector detection.Detector
	Engine   *refine.Engine
	Results  ResultFile

	// Delay is the minimum spacing between detector calls. 0 disables pacing.
	Delay time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Summary describes one Run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Tiles     int           `json:"tiles"`
	Resumed   int           `json:"resumed"`   // already in the result file
	Processed int           `json:"processed"` // detected and refined this run
	Failed    int           `json:"failed"`    // recorded empty after an error
	Symbols   int           `json:"symbols"`   // found this run
	Duration  time.Duration `json:"duration"`
}

// Driver runs detection and refinement over a tile source.
type Driver struct {
	opts    Options
	limiter *rate.Limiter
	logger  *logging.Logger
	last    Summary
}

// NewDriver validates opts and creates a Driver.
func NewDriver(opts Options) (*Driver, error) {
	switch {
	case opts.Source == nil:
		return nil, perrors.NewInvalidConfigurationError("pipeline.tiles_dir", "a tile source is required")
	case opts.Detector == nil:
		return nil, perrors.NewInvalidConfigurationError("detector.backend", "a detector is required")
	case opts.Engine == nil:
		return nil, perrors.NewInvalidConfigurationError("refine", "a refinement engine is required")
	case opts.Results.Path == "":
		return nil, perrors.NewInvalidConfigurationError("pipeline.output", "a result file path is required")
	case opts.Delay < 0:
		return nil, perrors.NewInvalidConfigurationError("pipeline.delay", "delay must not be negative, got %s", opts.Delay)
	}

	d := &Driver{opts: opts, logger: logging.NewLogger("pipeline")}
	if opts.Delay > 0 {
		d.limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	return d, nil
}

// Summary returns the statistics of the most recent Run.
func (d *Driver) Summary() Summary {
	return d.last
}

// Run processes every pending tile and returns the full result set,
// including tiles recorded by earlier runs. The result file is rewritten
// after each tile. On cancellation Run returns the results so far together
// with the context error; everything returned has been persisted.
func (d *Driver) Run(ctx context.Context) (*ResultSet, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	log := d.logger.With("run_id", sum.RunID)
	defer func() {
		sum.Duration = time.Since(start)
		d.last = sum
	}()

	set, err := d.opts.Results.Load()
	if err != nil {
		return nil, err
	}
	ids, err := d.opts.Source.IDs(ctx)
	if err != nil {
		return nil, err
	}
	sum.Tiles = len(ids)

	var pending []string
	for _, id := range ids {
		if set.Has(id) {
			sum.Resumed++
			d.countTile("resumed")
			continue
		}
		pending = append(pending, id)
	}
	log.Info("starting extraction", "tiles", len(ids), "pending", len(pending), "resumed", sum.Resumed)

	for _, id := range pending {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled", "processed", sum.Processed)
			return set, err
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return set, err
			}
		}

		symbols, ok := d.processTile(ctx, log, id)
		if ctx.Err() != nil {
			// interrupted mid-tile: leave it pending for the next run
			return set, ctx.Err()
		}
		if ok {
			sum.Processed++
			sum.Symbols += len(symbols)
			d.countTile("processed")
		} else {
			sum.Failed++
			d.countTile("failed")
		}

		set.Put(id, symbols)
		if err := d.opts.Results.Save(set); err != nil {
			log.Error("failed to save results", "path", d.opts.Results.Path, "error", err)
			return set, err
		}
	}

	log.Info("processing complete",
		"processed", sum.Processed,
		"failed", sum.Failed,
		"symbols", sum.Symbols,
		"output", d.opts.Results.Path,
		"duration", time.Since(start))
	return set, nil
}

// processTile detects and refines one tile. ok is false when the tile
// could not be loaded or the detector failed; symbols is then empty.
func (d *Driver) processTile(ctx context.Context, log *logging.Logger, id string) ([]refine.Symbol, bool) {
	img, err := d.opts.Source.Load(ctx, id)
	if err != nil {
		log.Warn("could not load tile, recording it empty", "tile", id, "error", err)
		return nil, false
	}

	raws, err := d.opts.Detector.Detect(ctx, img)
	if err != nil {
		derr := perrors.NewDetectionError(id, err)
		log.Warn("detector failed, recording tile empty", "tile", id, "error", derr)
		return nil, false
	}

	symbols, report := d.opts.Engine.Refine(ctx, img, raws, d.opts.Detector.Format())
	if len(symbols) == 0 {
		log.Info("no symbols", "tile", id, "raw", report.Total)
		return symbols, true
	}
	log.Info("found symbols", "tile", id, "count", len(symbols), "skipped", report.Total-report.Kept)
	for _, s := range symbols {
		log.Info("symbol", "tile", id, "label", s.FinalLabel, "confidence", s.Confidence.String())
	}
	return symbols, true
}

func (d *Driver) countTile(status string) {
	if d.opts.Metrics != nil {
		d.opts.Metrics.Tiles.WithLabelValues(status).Inc()
	}
}
