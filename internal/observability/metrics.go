// README: Prometheus collectors for the dispatch pipeline.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DispatchMetrics bundles dispatch counters. A nil *DispatchMetrics is valid
// and records nothing.
type DispatchMetrics struct {
	gatherer prometheus.Gatherer

	Runs              *prometheus.CounterVec
	OffersSent        prometheus.Counter
	OffersExpired     prometheus.Counter
	CandidatesSkipped *prometheus.CounterVec
	Assignments       *prometheus.CounterVec
	RankingFallbacks  *prometheus.CounterVec
	WorkAreaFallbacks prometheus.Counter
}

// NewDispatchMetrics registers the collectors against reg, defaulting to the
// global Prometheus registry when nil.
func NewDispatchMetrics(reg prometheus.Registerer) (*DispatchMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_runs_total",
		Help: "Dispatch runs by final outcome.",
	}, []string{"outcome"}), "dispatch_runs_total")
	if err != nil {
		return nil, err
	}
	sent, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_sent_total",
		Help: "Accept links delivered to agents.",
	}), "dispatch_offers_sent_total")
	if err != nil {
		return nil, err
	}
	expired, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_offers_expired_total",
		Help: "Offers that expired without a click.",
	}), "dispatch_offers_expired_total")
	if err != nil {
		return nil, err
	}
	skipped, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_candidates_skipped_total",
		Help: "Candidates passed over before contact, by reason.",
	}, []string{"reason"}), "dispatch_candidates_skipped_total")
	if err != nil {
		return nil, err
	}
	assignments, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Committed assignments by the path that committed them.",
	}, []string{"path"}), "dispatch_assignments_total")
	if err != nil {
		return nil, err
	}
	ranking, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_ranking_fallback_total",
		Help: "Direct-distance fallbacks during ranking; scope is element or all.",
	}, []string{"scope"}), "dispatch_ranking_fallback_total")
	if err != nil {
		return nil, err
	}
	workArea, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_work_area_fallback_total",
		Help: "Runs that fell back to every eligible agent because no work area matched.",
	}), "dispatch_work_area_fallback_total")
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		gatherer:          gatherer,
		Runs:              runs,
		OffersSent:        sent,
		OffersExpired:     expired,
		CandidatesSkipped: skipped,
		Assignments:       assignments,
		RankingFallbacks:  ranking,
		WorkAreaFallbacks: workArea,
	}, nil
}

func (m *DispatchMetrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *DispatchMetrics) OfferSent() {
	if m == nil {
		return
	}
	m.OffersSent.Inc()
}

func (m *DispatchMetrics) OfferExpired() {
	if m == nil {
		return
	}
	m.OffersExpired.Inc()
}

func (m *DispatchMetrics) CandidateSkipped(reason string) {
	if m == nil {
		return
	}
	m.CandidatesSkipped.WithLabelValues(reason).Inc()
}

func (m *DispatchMetrics) Assigned(path string) {
	if m == nil {
		return
	}
	m.Assignments.WithLabelValues(path).Inc()
}

func (m *DispatchMetrics) RankingFallback(scope string) {
	if m == nil {
		return
	}
	m.RankingFallbacks.WithLabelValues(scope).Inc()
}

func (m *DispatchMetrics) WorkAreaFallback() {
	if m == nil {
		return
	}
	m.WorkAreaFallbacks.Inc()
}

// Handler exposes the registry the metrics were registered with.
func (m *DispatchMetrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}
