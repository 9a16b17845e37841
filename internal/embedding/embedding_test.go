package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharCodeVector(t *testing.T) {
	t.Run("empty is zero", func(t *testing.T) {
		assert.Equal(t, []float32{0, 0, 0, 0}, CharCodeVector(""))
	})

	t.Run("single char", func(t *testing.T) {
		// 'a' = 97 -> 0
		assert.Equal(t, []float32{0, 0, 0, 0}, CharCodeVector("a"))
		// 'b' = 98 -> 1/97
		v := CharCodeVector("b")
		assert.InDelta(t, 0.010309, v[0], 1e-6)
		assert.Zero(t, v[1])
	})

	t.Run("distributes over four slots", func(t *testing.T) {
		v := CharCodeVector("bcde")
		// codes 98..101 -> 1..4 / 97, divided by 4
		assert.InDelta(t, 1.0/97/4, v[0], 1e-6)
		assert.InDelta(t, 2.0/97/4, v[1], 1e-6)
		assert.InDelta(t, 3.0/97/4, v[2], 1e-6)
		assert.InDelta(t, 4.0/97/4, v[3], 1e-6)
	})

	t.Run("only first 120 runes count", func(t *testing.T) {
		base := make([]rune, 120)
		for i := range base {
			base[i] = '가'
		}
		a := CharCodeVector(string(base))
		b := CharCodeVector(string(base) + "zzzz")
		assert.Equal(t, a, b)
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, CharCodeVector("왜 화났어?"), CharCodeVector("왜 화났어?"))
	})
}

func TestNewDefaultsToCharCode(t *testing.T) {
	e, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, CharCodeModel, e.Model())
	assert.Equal(t, CharCodeDimension, e.Dimension())

	_, err = New(Config{Provider: "nope"})
	assert.Error(t, err)

	_, err = New(Config{Provider: ProviderVoyage})
	assert.Error(t, err)

	_, err = New(Config{Provider: ProviderOllama, Model: "nomic-embed-text"})
	assert.Error(t, err, "dimension is required")
}

func TestVoyageClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp voyageResponse
		// answer out of order to exercise index placement
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewVoyageClient("key", "", 2)
	require.NoError(t, err)
	c.endpoint = srv.URL
	assert.Equal(t, DefaultVoyageModel, c.Model())

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)

	v, err := c.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, v)
}

func TestVoyageClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewVoyageClient("key", "", 2)
	require.NoError(t, err)
	c.endpoint = srv.URL

	_, err = c.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
