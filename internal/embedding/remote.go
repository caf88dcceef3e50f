package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
)

var errEmptyImage = errors.New("image has no pixels")

// Remote calls an HTTP image-embedding service.
//
// Request:  POST {url} {"image": "<base64 png>", "model": "<model>"}
// Response: {"embedding": [...]} or {"data": [{"embedding": [...]}]}
type Remote struct {
	url        string
	model      string
	apiKey     string
	dimension  int
	httpClient *http.Client
	logger     *logging.Logger
}

// RemoteConfig configures a Remote embedder.
type RemoteConfig struct {
	URL       string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration

	// HTTPClient overrides the default client (tests inject mocked transports).
	HTTPClient *http.Client
}

type remoteRequest struct {
	Image string `json:"image"`
	Model string `json:"model,omitempty"`
}

type remoteResponse struct {
	Embedding []float32 `json:"embedding"`
	Data      []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewRemote creates a new remote embedding client
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		return nil, perrors.NewInvalidConfigurationError("embedding.url", "embedding service URL is required")
	}
	if cfg.Dimension <= 0 {
		return nil, perrors.NewInvalidConfigurationError("embedding.dimension", "embedding dimension must be positive, got %d", cfg.Dimension)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Remote{
		url:        cfg.URL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		dimension:  cfg.Dimension,
		httpClient: client,
		logger:     logging.NewLogger("embedding.remote"),
	}, nil
}

// Dimension implements Embedder.
func (r *Remote) Dimension() int {
	return r.dimension
}

// Embed implements Embedder.
func (r *Remote) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, perrors.NewEmbeddingError("image", errEmptyImage)
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, perrors.NewEmbeddingError("image", err)
	}

	body, err := json.Marshal(remoteRequest{
		Image: base64.StdEncoding.EncodeToString(data),
		Model: r.model,
	})
	if err != nil {
		return nil, perrors.NewEmbeddingError("image", fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, perrors.NewEmbeddingError("image", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, perrors.NewEmbeddingError("image", fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perrors.NewEmbeddingError("image", fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, perrors.NewEmbeddingError("image", fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, perrors.NewEmbeddingError("image", fmt.Errorf("failed to parse response: %w", err))
	}

	vec := parsed.Embedding
	if len(vec) == 0 && len(parsed.Data) > 0 {
		vec = parsed.Data[0].Embedding
	}
	if len(vec) == 0 {
		return nil, perrors.NewEmbeddingError("image", errors.New("no embedding data in response"))
	}
	if len(vec) != r.dimension {
		return nil, perrors.NewEmbeddingError("image", fmt.Errorf("unexpected embedding dimensions: got %d, expected %d", len(vec), r.dimension))
	}

	r.logger.Debug("embedding generated", "dimensions", len(vec), "duration", time.Since(start))
	return vec, nil
}
