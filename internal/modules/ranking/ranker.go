// README: Ranks agents by driving distance with a great-circle fallback.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evconnect/internal/geo"
	"evconnect/internal/logging"
	"evconnect/internal/modules/agent"
	"evconnect/internal/observability"
	"evconnect/internal/types"
)

var ErrProviderUnavailable = errors.New("routing provider unavailable")

const StatusOK = "OK"

// Element is one origin-destination cell of a distance matrix.
type Element struct {
	Status         string
	DistanceMeters int
	Duration       time.Duration
}

func (e Element) OK() bool {
	return e.Status == StatusOK
}

func (e Element) Miles() float64 {
	return float64(e.DistanceMeters) * geo.MilesPerMeter
}

// Provider computes driving distances from one origin to many destinations.
// A returned error means the whole call failed; per-destination failures are
// reported through Element.Status.
type Provider interface {
	DistanceMatrix(ctx context.Context, origin types.Point, destinations []types.Point) ([]Element, error)
}

// Candidate is one ranked entry of a dispatch run's queue.
type Candidate struct {
	AgentID        types.ID       `json:"agent_id"`
	DistanceMiles  float64        `json:"distance_miles"`
	DirectDistance bool           `json:"direct_distance"`
	TravelTime     *time.Duration `json:"travel_time,omitempty"`
}

type Ranker struct {
	provider Provider
	log      logging.Logger
	metrics  *observability.DispatchMetrics
}

// NewRanker accepts a nil provider; every lookup then uses direct distance.
func NewRanker(provider Provider, log logging.Logger, metrics *observability.DispatchMetrics) *Ranker {
	if log == nil {
		log = logging.Noop()
	}
	return &Ranker{provider: provider, log: log, metrics: metrics}
}

// Rank orders agents by distance from origin, ascending. Ties keep the
// input order. Agents without a valid location are dropped.
func (r *Ranker) Rank(ctx context.Context, origin types.Point, agents []*agent.Agent) []Candidate {
	located := make([]*agent.Agent, 0, len(agents))
	for _, a := range agents {
		if a != nil && a.HasValidLocation() {
			located = append(located, a)
		}
	}
	if len(located) == 0 {
		return nil
	}

	candidates, err := r.withProvider(ctx, origin, located)
	if err != nil {
		r.log.Warn(ctx, "distance matrix failed; falling back to direct distance", logging.Err(err))
		r.metrics.RankingFallback("all")
		candidates = directCandidates(origin, located)
	}
	geo.SortByDistance(candidates, func(c Candidate) float64 { return c.DistanceMiles })
	return candidates
}

func (r *Ranker) withProvider(ctx context.Context, origin types.Point, agents []*agent.Agent) ([]Candidate, error) {
	destinations := make([]types.Point, len(agents))
	for i, a := range agents {
		destinations[i] = *a.Location
	}
	elements, err := r.matrix(ctx, origin, destinations)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, len(agents))
	for i, a := range agents {
		var el Element
		if i < len(elements) {
			el = elements[i]
		}
		if !el.OK() {
			r.log.Warn(ctx, "no driving distance for agent",
				logging.String("agent_id", string(a.ID)), logging.String("status", el.Status))
			r.metrics.RankingFallback("element")
			out[i] = Candidate{
				AgentID:        a.ID,
				DistanceMiles:  geo.DirectDistance(origin, *a.Location),
				DirectDistance: true,
			}
			continue
		}
		travel := el.Duration
		out[i] = Candidate{AgentID: a.ID, DistanceMiles: el.Miles(), TravelTime: &travel}
	}
	return out, nil
}

// Precise looks up a single driving distance for the contact-time recheck.
// Errors wrap ErrProviderUnavailable.
func (r *Ranker) Precise(ctx context.Context, origin, destination types.Point) (Element, error) {
	elements, err := r.matrix(ctx, origin, []types.Point{destination})
	if err != nil {
		return Element{}, err
	}
	if len(elements) == 0 {
		return Element{Status: "ZERO_RESULTS"}, nil
	}
	return elements[0], nil
}

func (r *Ranker) matrix(ctx context.Context, origin types.Point, destinations []types.Point) ([]Element, error) {
	if r.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrProviderUnavailable)
	}
	elements, err := r.provider.DistanceMatrix(ctx, origin, destinations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return elements, nil
}

func directCandidates(origin types.Point, agents []*agent.Agent) []Candidate {
	out := make([]Candidate, len(agents))
	for i, a := range agents {
		out[i] = Candidate{
			AgentID:        a.ID,
			DistanceMiles:  geo.DirectDistance(origin, *a.Location),
			DirectDistance: true,
		}
	}
	return out
}
