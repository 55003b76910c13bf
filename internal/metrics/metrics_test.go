package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRecords(t *testing.T) {
	m := NewManager(DefaultConfig())
	require.True(t, m.Enabled())

	m.RecordReview("good", "review")
	m.RecordReview("good", "review")
	m.RecordReview("again", "relearning")
	m.RecordPersistenceError("persist_review")
	m.SessionStarted()
	m.SetCardsDue("deck-1", "review", 7)
	m.RecordParamCache(true)
	m.RecordHTTPRequest("GET", "/api/health", "200", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reviews.WithLabelValues("good", "review")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistenceErrors.WithLabelValues("persist_review")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsStarted))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.cardsDue.WithLabelValues("deck-1", "review")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cadence_reviews_total"))
}

func TestDisabledManager(t *testing.T) {
	m := NewManager(Config{Enabled: false})
	assert.False(t, m.Enabled())
	assert.Nil(t, m.Registry())

	// All recorders are safe no-ops.
	m.RecordReview("good", "review")
	m.SessionStarted()
	m.SetActiveSessions(3)
	m.RecordHTTPRequest("GET", "/", "200", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var nilManager *Manager
	assert.False(t, nilManager.Enabled())
	nilManager.RecordReview("good", "review")
}
