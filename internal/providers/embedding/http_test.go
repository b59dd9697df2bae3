package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/utils"
)

func embeddingServer(t *testing.T, dim int, status int, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Input, 1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("overloaded"))
			return
		}
		vec := make([]float32, dim)
		vec[0] = 1
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"embedding": vec}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProviderEmbeds(t *testing.T) {
	srv := embeddingServer(t, 384, http.StatusOK, nil)
	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, APIKey: "secret"})

	v, err := p.Embed(context.Background(), "the showers are cold")
	require.NoError(t, err)
	assert.Len(t, v, 384)
	assert.Equal(t, float32(1), v[0])
}

func TestHTTPProviderRejectsWrongDimension(t *testing.T) {
	srv := embeddingServer(t, 12, http.StatusOK, nil)
	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, APIKey: "secret"})

	_, err := p.Embed(context.Background(), "text")
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}

func TestHTTPProviderErrors(t *testing.T) {
	srv := embeddingServer(t, 384, http.StatusServiceUnavailable, nil)
	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, APIKey: "secret"})

	_, err := p.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")

	_, err = p.Embed(context.Background(), "   ")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestResilientFailsFastWhenOpen(t *testing.T) {
	var hits int32
	srv := embeddingServer(t, 384, http.StatusInternalServerError, &hits)
	r := NewResilient(NewHTTPProvider(HTTPConfig{URL: srv.URL, APIKey: "secret"}), logger.Discard())

	for i := 0; i < 5; i++ {
		_, err := r.Embed(context.Background(), "text")
		require.Error(t, err)
	}
	before := atomic.LoadInt32(&hits)
	_, err := r.Embed(context.Background(), "text")
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Equal(t, before, atomic.LoadInt32(&hits))
	assert.Equal(t, 384, r.Dimensions())
}
