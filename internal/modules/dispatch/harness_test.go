package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"evconnect/internal/alert"
	"evconnect/internal/config"
	"evconnect/internal/geo"
	"evconnect/internal/memstore"
	"evconnect/internal/modules/agent"
	"evconnect/internal/modules/offer"
	"evconnect/internal/modules/ranking"
	"evconnect/internal/modules/servicereq"
	"evconnect/internal/notify"
	"evconnect/internal/observability"
	"evconnect/internal/types"
)

var (
	origin  = types.Point{Lat: 40.0, Lng: -75.0}
	nearLoc = types.Point{Lat: 40.01, Lng: -75.0}
	midLoc  = types.Point{Lat: 40.05, Lng: -75.0}
	farLoc  = types.Point{Lat: 41.0, Lng: -75.0}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeRoutes answers distance-matrix lookups from a table keyed by
// destination. Unknown destinations get NOT_FOUND.
type fakeRoutes struct {
	mu      sync.Mutex
	byDest  map[types.Point]ranking.Element
	precise map[types.Point]ranking.Element
	err     error
}

func (f *fakeRoutes) set(p types.Point, meters int, travel time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDest[p] = ranking.Element{Status: ranking.StatusOK, DistanceMeters: meters, Duration: travel}
}

// setPrecise overrides single-destination lookups, which is how the
// contact-time recheck queries.
func (f *fakeRoutes) setPrecise(p types.Point, meters int, travel time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.precise[p] = ranking.Element{Status: ranking.StatusOK, DistanceMeters: meters, Duration: travel}
}

func (f *fakeRoutes) DistanceMatrix(_ context.Context, _ types.Point, dests []types.Point) ([]ranking.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ranking.Element, len(dests))
	for i, d := range dests {
		el, ok := f.byDest[d]
		if p, hit := f.precise[d]; hit && len(dests) == 1 {
			el, ok = p, true
		}
		if !ok {
			el = ranking.Element{Status: "NOT_FOUND"}
		}
		out[i] = el
	}
	return out, nil
}

type fakeGeocoder struct {
	address string
	err     error
}

func (g fakeGeocoder) ReverseGeocode(context.Context, types.Point) (string, error) {
	return g.address, g.err
}

type harness struct {
	c        *Coordinator
	cfg      config.DispatchConfig
	agents   *memstore.Agents
	services *memstore.ServiceRequests
	offers   *memstore.Offers
	sms      *notify.Recorder
	alerts   *alert.Recorder
	sched    *MemoryScheduler
	runs     *MemoryRunStore
	clock    *fakeClock
	routes   *fakeRoutes
	metrics  *observability.DispatchMetrics
	deps     Deps
}

func newHarness(t *testing.T, agents ...*agent.Agent) *harness {
	t.Helper()
	metrics, err := observability.NewDispatchMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := config.DefaultDispatch()
	cfg.LinkBaseURL = "https://evconnect.test/"

	h := &harness{
		cfg:     cfg,
		agents:  memstore.NewAgents(agents...),
		offers:  memstore.NewOffers(),
		sms:     notify.NewRecorder(),
		alerts:  &alert.Recorder{},
		sched:   NewMemoryScheduler(),
		runs:    NewMemoryRunStore(),
		clock:   &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)},
		routes:  &fakeRoutes{byDest: map[types.Point]ranking.Element{}, precise: map[types.Point]ranking.Element{}},
		metrics: metrics,
	}
	h.services = memstore.NewServiceRequests().WithClock(h.clock.Now)
	h.deps = Deps{
		Agents:    h.agents,
		Services:  h.services,
		Offers:    h.offers,
		Ranker:    ranking.NewRanker(h.routes, nil, metrics),
		Gateway:   h.sms,
		Alerts:    h.alerts,
		Geocoder:  fakeGeocoder{address: "1 Main St, Springfield"},
		Runs:      h.runs,
		Scheduler: h.sched,
		Metrics:   metrics,
		Clock:     h.clock.Now,
	}
	h.c = NewCoordinator(cfg, h.deps)
	return h
}

// rewire rebuilds the coordinator after edit swaps some collaborators.
func (h *harness) rewire(edit func(d *Deps)) {
	d := h.deps
	edit(&d)
	h.c = NewCoordinator(h.cfg, d)
}

func (h *harness) request(t *testing.T, id types.ID, loc *types.Point, slots ...servicereq.AvailabilitySlot) {
	t.Helper()
	require.NoError(t, h.services.Create(context.Background(), &servicereq.ServiceRequest{
		ID:            id,
		FirstName:     "Ana",
		MobileNumber:  "+15550000",
		City:          "Springfield",
		Type:          servicereq.TypeRepair,
		Location:      loc,
		UserAvailable: slots,
		RequestedAt:   h.clock.Now(),
	}))
}

// expire moves the clock past the offer window and runs the poller once.
func (h *harness) expire(t *testing.T) {
	t.Helper()
	h.clock.Advance(h.cfg.OfferTTL)
	require.NoError(t, h.c.ProcessDue(context.Background()))
}

func (h *harness) offersFor(id types.ID) []*offer.Offer {
	return h.offers.ListByService(id)
}

func (h *harness) assignedTo(t *testing.T, id types.ID) types.ID {
	t.Helper()
	req, err := h.services.Get(context.Background(), id)
	require.NoError(t, err)
	if req.AgentID == nil {
		return ""
	}
	return *req.AgentID
}

func pt(p types.Point) *types.Point { return &p }

func coveringAgent(id, phone string, loc types.Point) *agent.Agent {
	return &agent.Agent{
		ID:           types.ID(id),
		FirstName:    id,
		MobileNumber: phone,
		Location:     pt(loc),
		WorkAreas:    []geo.WorkArea{geo.Circle{Name: "home", Center: origin, RadiusMeters: 200000}},
	}
}

func remoteAgent(id, phone string, loc types.Point, area geo.WorkArea) *agent.Agent {
	return &agent.Agent{
		ID:           types.ID(id),
		FirstName:    id,
		MobileNumber: phone,
		Location:     pt(loc),
		WorkAreas:    []geo.WorkArea{area},
	}
}

var errDown = errors.New("provider down")

// flakyServices fails the next failGets reads and failAssigns assignments.
type flakyServices struct {
	*memstore.ServiceRequests
	mu          sync.Mutex
	failGets    int
	failAssigns int
}

func (f *flakyServices) failNext(gets, assigns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGets, f.failAssigns = gets, assigns
}

func (f *flakyServices) AssignAgent(ctx context.Context, id, agentID types.ID, sched *servicereq.Schedule) (bool, error) {
	f.mu.Lock()
	if f.failAssigns > 0 {
		f.failAssigns--
		f.mu.Unlock()
		return false, errDown
	}
	f.mu.Unlock()
	return f.ServiceRequests.AssignAgent(ctx, id, agentID, sched)
}

func (f *flakyServices) Get(ctx context.Context, id types.ID) (*servicereq.ServiceRequest, error) {
	f.mu.Lock()
	if f.failGets > 0 {
		f.failGets--
		f.mu.Unlock()
		return nil, errDown
	}
	f.mu.Unlock()
	return f.ServiceRequests.Get(ctx, id)
}

// flakyRuns fails the next failSaves saves.
type flakyRuns struct {
	*MemoryRunStore
	failSaves int
}

func (f *flakyRuns) Save(ctx context.Context, run *Run) error {
	if f.failSaves > 0 {
		f.failSaves--
		return errDown
	}
	return f.MemoryRunStore.Save(ctx, run)
}

// flakyScheduler fails the next failSchedules schedules.
type flakyScheduler struct {
	*MemoryScheduler
	failSchedules int
}

func (f *flakyScheduler) Schedule(ctx context.Context, e Expiry) error {
	if f.failSchedules > 0 {
		f.failSchedules--
		return errDown
	}
	return f.MemoryScheduler.Schedule(ctx, e)
}
