package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pagegen-pipeline/internal/common/errors"
	"pagegen-pipeline/internal/common/invoker"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	sessions := session.NewContext(session.NewMemoryStore(), logger.NewNoOpLogger())
	inv := invoker.New(invoker.Config{BackoffBase: time.Millisecond, ClientID: "pagegen-test"}, sessions, logger.NewTestLogger(t))
	return NewAdapter(&Config{
		BaseURL:       baseURL,
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		HealthTimeout: time.Second,
		HealthPath:    "/healthz",
	}, inv, logger.NewTestLogger(t))
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims ends", "  привет  ", "привет"},
		{"collapses spaces", "make   a\theader", "make a header"},
		{"collapses blank lines", "one\n\n\n\ntwo", "one\n\ntwo"},
		{"windows line endings", "one\r\ntwo", "one\ntwo"},
		{"trims each line", "one  \n   two", "one\ntwo"},
		{"empty stays empty", "   \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestIngest_SubmitsNormalizedText(t *testing.T) {
	var received ingestRequest
	var idemKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ingest", r.URL.Path)
		idemKey = r.Header.Get("X-Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(`{"ack":true}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	pErr := adapter.Ingest(context.Background(), "sess-1", "  создай   заголовок \n\n\n и кнопку ")

	require.Nil(t, pErr)
	assert.Equal(t, "sess-1", received.SessionID)
	assert.Equal(t, "создай заголовок\n\nи кнопку", received.Text)
	assert.NotEmpty(t, idemKey)

	// Key derives from content, so the same logical write reuses it.
	expected := session.IdempotencyKey("sess-1", "extract-entities", []byte(received.Text))
	assert.Equal(t, expected, idemKey)
}

func TestIngest_EmptyTextRejected(t *testing.T) {
	adapter := newTestAdapter(t, "http://unused")
	pErr := adapter.Ingest(context.Background(), "sess-1", "   \n ")

	require.NotNil(t, pErr)
	assert.Equal(t, errors.ErrCodeValidation, pErr.Code)
}

func TestFetchEntities_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/entities", r.URL.Path)
		assert.Equal(t, "sess-1", r.URL.Query().Get("sessionId"))
		w.Write([]byte(`{
			"entities": ["заголовок", "кнопка"],
			"keyphrases": ["создай заголовок"],
			"chunksProcessed": 1,
			"layout": {
				"template": "landing",
				"sections": {"hero": [{"type": "header"}]}
			}
		}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	result := adapter.FetchEntities(context.Background(), "sess-1")

	require.Nil(t, result.Err)
	assert.Equal(t, []string{"заголовок", "кнопка"}, result.Entities)
	assert.Equal(t, []string{"создай заголовок"}, result.Keyphrases)
	assert.Equal(t, 1, result.ChunksProcessed)
	require.NotNil(t, result.Layout)
	assert.Equal(t, "landing", result.Layout.Template)
	assert.False(t, result.Empty())
}

func TestFetchEntities_EmptySetIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities": [], "keyphrases": [], "chunksProcessed": 0}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	result := adapter.FetchEntities(context.Background(), "sess-1")

	require.Nil(t, result.Err, "an empty entity set is legitimate output")
	assert.True(t, result.Empty())
}

func TestFetchEntities_FailureYieldsEmptySetWithError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	result := adapter.FetchEntities(context.Background(), "sess-1")

	require.NotNil(t, result.Err)
	assert.Equal(t, errors.ErrCodeHTTP, result.Err.Code)
	assert.True(t, result.Empty())
	assert.NotNil(t, result.Entities, "empty set, not nil")
}

func TestFetchEntities_ShapeMismatchRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// entities as objects instead of strings
		w.Write([]byte(`{"entities": [{"value": "header"}]}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	result := adapter.FetchEntities(context.Background(), "sess-1")

	require.NotNil(t, result.Err)
	assert.Equal(t, errors.ErrCodeServiceLogic, result.Err.Code)
	assert.True(t, result.Empty())
}

func TestHealthCheck_ReportsFalseOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	assert.False(t, adapter.HealthCheck(context.Background()))
}
