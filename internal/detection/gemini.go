package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
)

// DefaultGeminiBaseURL is the public Generative Language API endpoint.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.0-flash"

// SymbolPrompt asks the model for coarse symbol labels with normalized
// yxyx boxes. Coarse labels are refined against the knowledge base.
const SymbolPrompt = `Analyze this P&ID engineering diagram.
Locate all equipment and instrument symbols.

Return a STRICT JSON list. Format:
[
  {"label": "valve", "box_2d": [ymin, xmin, ymax, xmax]},
  {"label": "pump", "box_2d": [ymin, xmin, ymax, xmax]}
]

Important:
- Coordinates must be normalized (0-1000).
- If you see a valve, just label it "valve".
- If you see a pump, just label it "pump".
- If you see a circle with letters, label it "instrument".`

// GeminiConfig configures a GeminiDetector.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Prompt  string
	Timeout time.Duration

	// HTTPClient overrides the default client (tests inject mocked transports).
	HTTPClient *http.Client
}

// GeminiDetector asks a Gemini vision model to locate symbols.
type GeminiDetector struct {
	endpoint   string
	prompt     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewGeminiDetector validates cfg and builds the generateContent endpoint.
func NewGeminiDetector(cfg GeminiConfig) (*GeminiDetector, error) {
	if cfg.APIKey == "" {
		return nil, perrors.NewInvalidConfigurationError("detector.api_key", "gemini API key is required (set GOOGLE_API_KEY)")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = SymbolPrompt
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", base, url.PathEscape(model), url.QueryEscape(cfg.APIKey))
	return &GeminiDetector{
		endpoint:   endpoint,
		prompt:     prompt,
		httpClient: client,
		logger:     logging.NewLogger("detection.gemini"),
	}, nil
}

// Format implements Detector.
func (g *GeminiDetector) Format() BoxFormat {
	return NormalizedYXYX
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Detect implements Detector.
func (g *GeminiDetector) Detect(ctx context.Context, img image.Image) ([]RawDetection, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: g.prompt},
				{InlineData: &geminiInlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(data)}},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, errors.New("gemini returned no candidates")
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	dets, err := ParseDetections(text.String())
	if err != nil {
		return nil, err
	}
	g.logger.Debug("gemini detection complete", "detections", len(dets), "duration", time.Since(start))
	return dets, nil
}

// ParseDetections decodes a model's text answer into raw detections.
// Markdown code fences are stripped. The payload must be a JSON list;
// items that are not objects are skipped, and a missing or blank label
// becomes UnknownLabel. Box entries that are not
// numbers become NaN so that they are rejected as malformed downstream.
func ParseDetections(text string) ([]RawDetection, error) {
	text = stripCodeFences(text)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("detector response is not a JSON list: %w", err)
	}

	dets := make([]RawDetection, 0, len(items))
	for _, item := range items {
		var obj struct {
			Label string        `json:"label"`
			Box   []interface{} `json:"box_2d"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		var box []float64
		if obj.Box != nil {
			box = make([]float64, len(obj.Box))
			for i, v := range obj.Box {
				if f, ok := v.(float64); ok {
					box[i] = f
				} else {
					box[i] = math.NaN()
				}
			}
		}
		label := strings.TrimSpace(obj.Label)
		if label == "" {
			label = UnknownLabel
		}
		dets = append(dets, RawDetection{Label: label, Box: box})
	}
	return dets, nil
}

// UnknownLabel names a detection the model returned without a label.
const UnknownLabel = "unknown"

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
