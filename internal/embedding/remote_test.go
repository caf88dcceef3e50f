package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
)

const testEmbedURL = "https://embed.example.test/v1/embed"

func newMockedRemote(t *testing.T, dim int) (*Remote, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	r, err := NewRemote(RemoteConfig{
		URL:        testEmbedURL,
		Model:      "clip-ViT-B-32",
		APIKey:     "secret",
		Dimension:  dim,
		HTTPClient: &http.Client{Transport: transport},
	})
	require.NoError(t, err)
	return r, transport
}

func TestNewRemote_Validation(t *testing.T) {
	_, err := NewRemote(RemoteConfig{Dimension: 3})
	assert.True(t, perrors.HasCode(err, perrors.ErrorInvalidConfiguration))

	_, err = NewRemote(RemoteConfig{URL: testEmbedURL})
	assert.True(t, perrors.HasCode(err, perrors.ErrorInvalidConfiguration))
}

func TestRemote_Embed(t *testing.T) {
	r, transport := newMockedRemote(t, 3)

	transport.RegisterResponder(http.MethodPost, testEmbedURL,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
			var body remoteRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			assert.Equal(t, "clip-ViT-B-32", body.Model)
			assert.NotEmpty(t, body.Image)
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"embedding": []float32{0.1, 0.2, 0.3},
			})
		})

	vec, err := r.Embed(context.Background(), drawCircleSymbol(20, 6))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, r.Dimension())
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestRemote_EmbedDataEnvelope(t *testing.T) {
	r, transport := newMockedRemote(t, 2)
	transport.RegisterResponder(http.MethodPost, testEmbedURL,
		httpmock.NewStringResponder(http.StatusOK, `{"data":[{"embedding":[1.5,2.5]}]}`))

	vec, err := r.Embed(context.Background(), drawCircleSymbol(20, 6))
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5}, vec)
}

func TestRemote_EmbedFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"not json", http.StatusOK, `<html>`},
		{"empty", http.StatusOK, `{}`},
		{"wrong dimension", http.StatusOK, `{"embedding":[1,2,3,4]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, transport := newMockedRemote(t, 3)
			transport.RegisterResponder(http.MethodPost, testEmbedURL,
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := r.Embed(context.Background(), drawCircleSymbol(20, 6))
			require.Error(t, err)
			assert.True(t, perrors.HasCode(err, perrors.ErrorEmbeddingFailed))
		})
	}
}
