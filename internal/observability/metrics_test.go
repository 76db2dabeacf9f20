package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewDispatchMetrics(reg)
	require.NoError(t, err)

	m.OfferSent()
	m.OfferSent()
	m.OfferExpired()
	m.CandidateSkipped("too_far")
	m.Assigned("link")
	m.RankingFallback("all")
	m.WorkAreaFallback()
	m.RunFinished("offered")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OffersSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OffersExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandidatesSkipped.WithLabelValues("too_far")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assignments.WithLabelValues("link")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RankingFallbacks.WithLabelValues("all")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkAreaFallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("offered")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(w.Body.String(), "dispatch_offers_sent_total 2"))
}

func TestDispatchMetrics_ReRegisterReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewDispatchMetrics(reg)
	require.NoError(t, err)
	second, err := NewDispatchMetrics(reg)
	require.NoError(t, err)

	second.OfferSent()
	assert.Equal(t, 1.0, testutil.ToFloat64(first.OffersSent))
}

func TestDispatchMetrics_NilSafe(t *testing.T) {
	var m *DispatchMetrics
	assert.NotPanics(t, func() {
		m.OfferSent()
		m.CandidateSkipped("x")
		m.RunFinished("x")
	})
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), false, "evconnect", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
