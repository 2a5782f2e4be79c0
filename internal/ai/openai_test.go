package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newOpenAITestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/chat/completions":
			var req openAIChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "test-model", req.Model)
			require.Len(t, req.Messages, 1)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": "  hello back  "}},
				},
			})
		case "/embeddings":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{
					{"embedding": []float32{0.1, 0.2, 0.3}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOpenAIGenerate(t *testing.T) {
	srv := newOpenAITestServer(t)
	defer srv.Close()

	provider, err := NewProvider("openai", map[string]interface{}{
		"api_key":  "test-key",
		"base_url": srv.URL,
	})
	require.NoError(t, err)

	out, err := provider.Generate(context.Background(), "test-model", "say hi")
	require.NoError(t, err)
	require.Equal(t, "hello back", out)
}

func TestOpenAIEmbed(t *testing.T) {
	srv := newOpenAITestServer(t)
	defer srv.Close()

	provider, err := NewProvider("openai", map[string]interface{}{
		"api_key":  "test-key",
		"base_url": srv.URL,
	})
	require.NoError(t, err)

	vec, err := provider.Embed(context.Background(), "embed-model", "some text", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider, err := NewProvider("openai", map[string]interface{}{
		"api_key":  "test-key",
		"base_url": srv.URL,
	})
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), "test-model", "say hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestOpenAIMissingKeyUnavailable(t *testing.T) {
	provider, err := NewProvider("openai", map[string]interface{}{})
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), "m", "p")
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = provider.Embed(context.Background(), "m", "t", "")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("does-not-exist", nil)
	require.Error(t, err)
	_, err = NewProvider("", nil)
	require.Error(t, err)
}

func TestProviderViews(t *testing.T) {
	srv := newOpenAITestServer(t)
	defer srv.Close()
	provider, err := NewProvider("openai", map[string]interface{}{
		"api_key":  "test-key",
		"base_url": srv.URL,
	})
	require.NoError(t, err)

	gen := NewGenerator(provider, "test-model")
	out, err := gen.Generate(context.Background(), "say hi")
	require.NoError(t, err)
	require.Equal(t, "hello back", out)

	emb := NewEmbedder(provider, "embed-model")
	require.Equal(t, "embed-model", emb.ModelName())
	vec, err := emb.Embed(context.Background(), "text", "")
	require.NoError(t, err)
	require.Len(t, vec, 3)
}
