package visualmap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pagegen-pipeline/internal/catalog"
	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/invoker"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/layout"
	"pagegen-pipeline/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, baseURL string, cacheTTL time.Duration) *Adapter {
	sessions := session.NewContext(session.NewMemoryStore(), logger.NewNoOpLogger())
	inv := invoker.New(invoker.Config{BackoffBase: time.Millisecond, ClientID: "pagegen-test"}, sessions, logger.NewTestLogger(t))
	return NewAdapter(&Config{
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		HealthTimeout: time.Second,
		HealthPath:    "/healthz",
	}, inv, catalog.New(cacheTTL, time.Minute), logger.NewTestLogger(t))
}

func TestMapEntities_Success(t *testing.T) {
	var received mapRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/map", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{
			"template": "landing",
			"sections": {
				"hero": [{"type": "header", "confidence": 0.92, "matchType": "exact"}],
				"main": [{"type": "button", "matchType": "synonym"}],
				"footer": []
			},
			"matches": [
				{"term": "заголовок", "component": "header", "confidence": 0.92, "matchType": "exact"},
				{"term": "кнопка", "component": "button", "confidence": 0.7, "matchType": "synonym"}
			],
			"count": 2
		}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)
	result := adapter.MapEntities(context.Background(), "sess-1", []string{"заголовок", "кнопка"}, []string{"создай заголовок"}, "landing")

	require.True(t, result.OK())
	assert.Equal(t, "sess-1", received.SessionID)
	assert.Equal(t, []string{"заголовок", "кнопка"}, received.Entities)
	assert.Equal(t, "landing", received.Template)
	assert.Equal(t, 2, result.Count)
	assert.Len(t, result.Matches, 2)
	require.NotNil(t, result.Layout)
	assert.Len(t, result.Layout.Sections["hero"], 1)
}

func TestMapEntities_EmptyEntitiesFailsWithoutNetworkCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)
	result := adapter.MapEntities(context.Background(), "sess-1", nil, nil, "landing")

	require.NotNil(t, result.Err)
	assert.Equal(t, errors.ErrCodeValidation, result.Err.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "validation must precede the network")
}

func TestMapEntities_FailureYieldsEmptySectionsWithError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)
	result := adapter.MapEntities(context.Background(), "sess-1", []string{"header"}, nil, "landing")

	require.NotNil(t, result.Err)
	assert.Equal(t, errors.ErrCodeHTTP, result.Err.Code)
	assert.Equal(t, "map-visual", result.Err.Stage)
	assert.Equal(t, 0, result.Count)
	require.NotNil(t, result.Layout, "degraded result still carries a layout")
	for _, name := range layout.SectionNames {
		section, ok := result.Layout.Sections[name]
		assert.True(t, ok)
		assert.Empty(t, section)
	}
}

func TestMapEntities_ShapeMismatchRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// sections as an array instead of an object
		w.Write([]byte(`{"sections": [], "count": 0}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)
	result := adapter.MapEntities(context.Background(), "sess-1", []string{"header"}, nil, "landing")

	require.NotNil(t, result.Err)
	assert.Equal(t, errors.ErrCodeServiceLogic, result.Err.Code)
}

func TestMapEntities_IdempotencyKeyDerivedFromPayload(t *testing.T) {
	keys := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("X-Idempotency-Key")
		w.Write([]byte(`{"sections": {}, "count": 0}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)
	adapter.MapEntities(context.Background(), "sess-1", []string{"header"}, nil, "landing")
	adapter.MapEntities(context.Background(), "sess-1", []string{"header"}, nil, "landing")

	first, second := <-keys, <-keys
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second, "same payload, same key")
}

func TestCatalog_CachesWithinTTL(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/components", r.URL.Path)
		atomic.AddInt32(&fetches, 1)
		w.Write([]byte(`{"components": [
			{"name": "header", "displayName": "Header", "description": "Page header"},
			{"name": "button", "displayName": "Button", "description": "Call to action"}
		]}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)

	first, pErr := adapter.Catalog(context.Background())
	require.Nil(t, pErr)
	require.Len(t, first, 2)
	assert.Equal(t, "header", first[0].Name)

	second, pErr := adapter.Catalog(context.Background())
	require.Nil(t, pErr)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "second call must hit the cache")
}

func TestCatalog_RefetchesAfterExpiry(t *testing.T) {
	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		w.Write([]byte(`{"components": [{"name": "header"}]}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, 20*time.Millisecond)

	_, pErr := adapter.Catalog(context.Background())
	require.Nil(t, pErr)
	time.Sleep(40 * time.Millisecond)
	_, pErr = adapter.Catalog(context.Background())
	require.Nil(t, pErr)

	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestCatalog_ColdCacheFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)
	entries, pErr := adapter.Catalog(context.Background())

	require.NotNil(t, pErr)
	assert.Nil(t, entries)
}

func TestHealthCheck_ReportsTrueOnOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL, time.Minute)
	assert.True(t, adapter.HealthCheck(context.Background()))
}
