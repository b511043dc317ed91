package food

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/cgi/search.pl", r.URL.Path)
		assert.Equal(t, "Nutella", r.URL.Query().Get("search_terms"))
		assert.Equal(t, "20", r.URL.Query().Get("page_size"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"products":[
			{"code":"301","product_name":"Nutella","brands":"Ferrero","nutrition_grades":"e","image_front_url":"http://img"},
			{"code":"302"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"})
	results, err := c.Search(context.Background(), " Nutella ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "E", results[0].NutritionGrade)
	require.NotNil(t, results[0].ImageURL)
	assert.Equal(t, "Unknown Product", results[1].ProductName)
	assert.Equal(t, "N/A", results[1].NutritionGrade)
	assert.Equal(t, "Ingredients not available.", results[1].IngredientsText)
	assert.Nil(t, results[1].ImageURL)

	_, err = c.Search(context.Background(), "nutella")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second search should be served from cache")
}

func TestProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/product/737628064502":
			_, _ = w.Write([]byte(`{"status":1,"product":{"product_name":"Rice Noodles","nutriscore_score":3,"nova_group":4,"ecoscore_grade":"b","additives_tags":["en:e330"]}}`))
		default:
			_, _ = w.Write([]byte(`{"status":0}`))
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	p, err := c.Product(context.Background(), "737628064502")
	require.NoError(t, err)
	assert.Equal(t, "737628064502", p.ID)
	assert.Equal(t, "B", p.EcoscoreGrade)
	require.NotNil(t, p.NutriscoreScore)
	assert.InDelta(t, 3, *p.NutriscoreScore, 0.001)
	assert.Equal(t, []string{"en:e330"}, p.AdditivesTags)
	assert.NotNil(t, p.Nutriments)

	_, err = c.Product(context.Background(), "000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetriesOnceWhenRateLimited(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RetryDelay: 10 * time.Millisecond})
	results, err := c.Search(context.Background(), "tea")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Product(context.Background(), "1")
	assert.ErrorIs(t, err, ErrUpstream)
}
