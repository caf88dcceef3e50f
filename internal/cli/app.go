package cli

import (
	"context"

	"github.com/spf13/viper"

	"github.com/ironsheep/pid-symbol-tools/internal/config"
	"github.com/ironsheep/pid-symbol-tools/internal/detection"
	"github.com/ironsheep/pid-symbol-tools/internal/embedding"
	"github.com/ironsheep/pid-symbol-tools/internal/knowledge"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
	"github.com/ironsheep/pid-symbol-tools/internal/metrics"
	"github.com/ironsheep/pid-symbol-tools/internal/refine"
)

// app holds state shared by every subcommand: the viper instance flags are
// bound to and the configuration loaded from it before the command runs.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *logging.Logger

	configFile string
	envFile    string
}

func newApp() *app {
	return &app{
		v:       config.New(),
		metrics: metrics.New(),
		logger:  logging.NewLogger("cli"),
	}
}

// load reads and validates configuration. Called from PersistentPreRunE.
func (a *app) load() error {
	cfg, err := config.Load(a.v, a.configFile, a.envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.SetLevel(cfg.Log.Level)
	a.cfg = cfg
	return nil
}

// embedder builds the configured embedding backend behind a cache.
func (a *app) embedder() (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch a.cfg.Embedding.Backend {
	case config.EmbeddingRemote:
		r, err := embedding.NewRemote(embedding.RemoteConfig{
			URL:       a.cfg.Embedding.URL,
			Model:     a.cfg.Embedding.Model,
			APIKey:    a.cfg.Embedding.APIKey,
			Dimension: a.cfg.Embedding.Dimension,
		})
		if err != nil {
			return nil, err
		}
		inner = r
	default:
		inner = embedding.NewLocal(a.cfg.Embedding.Grid)
	}
	return embedding.NewCached(inner, a.cfg.Embedding.CacheTTL), nil
}

// openBase opens the configured knowledge base. The caller closes it.
func (a *app) openBase(ctx context.Context) (*knowledge.Base, error) {
	emb, err := a.embedder()
	if err != nil {
		return nil, err
	}

	var store knowledge.Store
	switch a.cfg.KB.Backend {
	case config.KBQdrant:
		store, err = knowledge.OpenQdrant(ctx, knowledge.QdrantConfig{
			Address:    a.cfg.KB.QdrantAddress,
			Collection: a.cfg.KB.Collection,
			Dimension:  emb.Dimension(),
		})
	default:
		store, err = knowledge.OpenSQLite(a.cfg.KB.Path)
	}
	if err != nil {
		return nil, err
	}
	a.logger.Debug("knowledge base open", "backend", a.cfg.KB.Backend, "dimension", emb.Dimension())
	return knowledge.NewBase(store, emb), nil
}

// detector builds the configured detector.
func (a *app) detector() (detection.Detector, error) {
	switch a.cfg.Detector.Backend {
	case config.DetectorShapes:
		return detection.NewShapeDetector(detection.DefaultShapeConfig()), nil
	default:
		if err := a.cfg.RequireDetectorKey(); err != nil {
			return nil, err
		}
		return detection.NewGeminiDetector(detection.GeminiConfig{
			APIKey:  a.cfg.Detector.APIKey,
			Model:   a.cfg.Detector.Model,
			BaseURL: a.cfg.Detector.BaseURL,
			Timeout: a.cfg.Detector.Timeout,
		})
	}
}

func (a *app) engine(base *knowledge.Base) *refine.Engine {
	var matcher refine.Matcher
	if base != nil {
		matcher = base
	}
	return refine.NewEngine(a.cfg.Refine, matcher, a.metrics)
}
