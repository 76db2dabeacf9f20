package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"evconnect/internal/alert"
	"evconnect/internal/config"
	"evconnect/internal/geo"
	"evconnect/internal/logging"
	"evconnect/internal/modules/agent"
	"evconnect/internal/modules/offer"
	"evconnect/internal/modules/ranking"
	"evconnect/internal/modules/servicereq"
	"evconnect/internal/notify"
	"evconnect/internal/observability"
	"evconnect/internal/types"
)

var (
	ErrInvalidCoordinates = errors.New("service request has invalid coordinates")
	ErrNoEligibleAgents   = errors.New("no eligible agents")
	ErrOfferExpired       = errors.New("offer expired")
)

const unknownLocation = "Unknown location"

// Skip reasons recorded when a candidate is passed over without an offer.
const (
	skipAgentUnavailable = "agent_unavailable"
	skipTooFar           = "too_far"
	skipNoRoute          = "no_route"
	skipInflexible       = "inflexible"
	skipNoContact        = "no_contact"
	skipContactFailed    = "contact_failed"
)

type Agents interface {
	ListAll(ctx context.Context) ([]*agent.Agent, error)
	Get(ctx context.Context, id types.ID) (*agent.Agent, error)
}

type ServiceRequests interface {
	Get(ctx context.Context, id types.ID) (*servicereq.ServiceRequest, error)
	AssignAgent(ctx context.Context, id, agentID types.ID, sched *servicereq.Schedule) (bool, error)
}

type Offers interface {
	Create(ctx context.Context, o *offer.Offer) error
	Get(ctx context.Context, id types.ID) (*offer.Offer, error)
	MarkClicked(ctx context.Context, id types.ID, at time.Time) (bool, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, p types.Point) (string, error)
}

// Deps are the collaborators of a Coordinator. Geocoder, Alerts and Metrics
// may be nil.
type Deps struct {
	Agents    Agents
	Services  ServiceRequests
	Offers    Offers
	Ranker    *ranking.Ranker
	Gateway   notify.Gateway
	Alerts    alert.Alerter
	Geocoder  Geocoder
	Runs      RunStore
	Scheduler Scheduler
	Metrics   *observability.DispatchMetrics
	Log       logging.Logger
	Clock     func() time.Time
}

// Coordinator runs the sequential offer loop for service requests and
// resolves the race between an agent's click and the offer's expiry.
type Coordinator struct {
	cfg       config.DispatchConfig
	agents    Agents
	services  ServiceRequests
	offers    Offers
	ranker    *ranking.Ranker
	gateway   notify.Gateway
	alerts    alert.Alerter
	geocoder  Geocoder
	runs      RunStore
	scheduler Scheduler
	metrics   *observability.DispatchMetrics
	log       logging.Logger
	now       func() time.Time
	locks     *keyedMutex
	tracer    trace.Tracer
}

func NewCoordinator(cfg config.DispatchConfig, d Deps) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		agents:    d.Agents,
		services:  d.Services,
		offers:    d.Offers,
		ranker:    d.Ranker,
		gateway:   d.Gateway,
		alerts:    d.Alerts,
		geocoder:  d.Geocoder,
		runs:      d.Runs,
		scheduler: d.Scheduler,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       d.Clock,
		locks:     newKeyedMutex(),
		tracer:    otel.Tracer("evconnect/dispatch"),
	}
	if c.log == nil {
		c.log = logging.Noop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.alerts == nil {
		c.alerts = alert.Multi{}
	}
	if c.ranker == nil {
		c.ranker = ranking.NewRanker(nil, c.log, c.metrics)
	}
	if c.runs == nil {
		c.runs = NewMemoryRunStore()
	}
	if c.scheduler == nil {
		c.scheduler = NewMemoryScheduler()
	}
	return c
}

// OnCreated starts dispatch for a freshly created request. Requests without
// valid coordinates are skipped silently.
func (c *Coordinator) OnCreated(ctx context.Context, req *servicereq.ServiceRequest) error {
	if _, ok := req.DispatchLocation(); !ok {
		c.log.Info(ctx, "service request has no dispatchable location; dispatch skipped",
			logging.String("service_id", string(req.ID)))
		return nil
	}
	return c.Dispatch(ctx, req.ID)
}

// Dispatch filters and ranks agents for the request and contacts the first
// acceptable candidate. It is a no-op when the request is already assigned
// or a run is already in progress.
func (c *Coordinator) Dispatch(ctx context.Context, serviceID types.ID) (err error) {
	ctx, span := c.tracer.Start(ctx, "dispatch.Dispatch",
		trace.WithAttributes(attribute.String("service_id", string(serviceID))))
	defer func() { endSpan(span, err) }()

	unlock := c.locks.Lock(serviceID)
	defer unlock()

	log := c.log.With(logging.String("service_id", string(serviceID)))

	req, err := c.services.Get(ctx, serviceID)
	if err != nil {
		return err
	}
	loc, ok := req.DispatchLocation()
	if !ok {
		return ErrInvalidCoordinates
	}
	if req.Assigned() {
		log.Info(ctx, "service request already assigned; nothing to dispatch")
		return nil
	}
	if run, running, err := c.runs.Load(ctx, serviceID); err != nil {
		return fmt.Errorf("load run: %w", err)
	} else if running {
		if !c.stalled(ctx, run) {
			log.Info(ctx, "dispatch already in progress")
			return nil
		}
		log.Warn(ctx, "resuming stalled dispatch run", logging.Int("index", run.Index))
		return c.resolveOffer(ctx, log, req, run)
	}

	all, err := c.agents.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	eligible := agent.Eligible(all)
	if len(eligible) == 0 {
		c.failRun(ctx, req, fmt.Sprintf("no agents with valid coordinates and contact for service %s", req.ID))
		return ErrNoEligibleAgents
	}

	pool := agent.NewAreaIndex(eligible).Servicing(loc)
	fallback := false
	if len(pool) == 0 {
		fallback = true
		pool = eligible
		c.metrics.WorkAreaFallback()
		log.Warn(ctx, "no agents cover the service location; falling back to all eligible agents",
			logging.Int("eligible", len(eligible)))
		c.alertNoCoverage(ctx, req, loc)
	}

	candidates := c.ranker.Rank(ctx, loc, pool)
	if len(candidates) == 0 {
		c.failRun(ctx, req, fmt.Sprintf("ranking returned no candidates for service %s", req.ID))
		return ErrNoEligibleAgents
	}
	log.Info(ctx, "dispatch run started",
		logging.Int("candidates", len(candidates)), logging.Any("work_area_fallback", fallback))

	run := &Run{
		ServiceID:        serviceID,
		Location:         loc,
		Candidates:       candidates,
		WorkAreaFallback: fallback,
		StartedAt:        c.now(),
	}
	return c.advance(ctx, run, 0)
}

// Accept records a click on an offer's link and assigns the agent when the
// request is still open. Clicks on an already assigned request return the
// current state.
func (c *Coordinator) Accept(ctx context.Context, offerID types.ID) (req *servicereq.ServiceRequest, err error) {
	ctx, span := c.tracer.Start(ctx, "dispatch.Accept",
		trace.WithAttributes(attribute.String("offer_id", string(offerID))))
	defer func() { endSpan(span, err) }()

	o, err := c.offers.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(o.ServiceID)
	defer unlock()

	req, err = c.services.Get(ctx, o.ServiceID)
	if err != nil {
		return nil, err
	}
	if req.Assigned() {
		return req, nil
	}
	now := c.now()
	if o.ExpiredAt(now) {
		return nil, ErrOfferExpired
	}
	if _, err := c.offers.MarkClicked(ctx, o.ID, now); err != nil {
		return nil, fmt.Errorf("mark offer clicked: %w", err)
	}
	if err := c.commit(ctx, req, o.AgentID, "click"); err != nil {
		return nil, err
	}
	return c.services.Get(ctx, o.ServiceID)
}

// HandleExpiry resolves an offer whose window has closed. Entries for an
// offer that is no longer the run's current one are ignored.
func (c *Coordinator) HandleExpiry(ctx context.Context, e Expiry) (err error) {
	ctx, span := c.tracer.Start(ctx, "dispatch.HandleExpiry", trace.WithAttributes(
		attribute.String("service_id", string(e.ServiceID)),
		attribute.String("offer_id", string(e.OfferID)),
		attribute.Int("index", e.Index)))
	defer func() { endSpan(span, err) }()

	unlock := c.locks.Lock(e.ServiceID)
	defer unlock()

	log := c.log.With(
		logging.String("service_id", string(e.ServiceID)),
		logging.String("offer_id", string(e.OfferID)),
		logging.Int("index", e.Index))

	req, err := c.services.Get(ctx, e.ServiceID)
	if errors.Is(err, servicereq.ErrNotFound) {
		log.Warn(ctx, "service request vanished; dropping run")
		return c.runs.Delete(ctx, e.ServiceID)
	}
	if err != nil {
		return err
	}

	run, ok, err := c.runs.Load(ctx, e.ServiceID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if !ok || run.OfferID != e.OfferID {
		log.Debug(ctx, "stale expiry ignored")
		return nil
	}
	if req.Assigned() {
		log.Info(ctx, "service request already assigned; closing run")
		c.metrics.RunFinished("assigned_elsewhere")
		return c.runs.Delete(ctx, e.ServiceID)
	}

	return c.resolveOffer(ctx, log, req, run)
}

// resolveOffer settles the run's current offer once its window has closed:
// a recorded click is committed, anything else moves to the next candidate.
func (c *Coordinator) resolveOffer(ctx context.Context, log logging.Logger, req *servicereq.ServiceRequest, run *Run) error {
	o, err := c.offers.Get(ctx, run.OfferID)
	if err != nil {
		log.Warn(ctx, "offer lookup failed; moving to next candidate", logging.Err(err))
		return c.advance(ctx, run, run.Index+1)
	}
	if o.Accepted() {
		return c.commit(ctx, req, o.AgentID, "expiry_check")
	}

	c.metrics.OfferExpired()
	log.Info(ctx, "offer expired without a click", logging.String("agent_id", string(o.AgentID)))
	return c.advance(ctx, run, run.Index+1)
}

// stalled reports whether the run's current offer should have been settled
// by its expiry check at least one lease ago.
func (c *Coordinator) stalled(ctx context.Context, run *Run) bool {
	o, err := c.offers.Get(ctx, run.OfferID)
	if errors.Is(err, offer.ErrNotFound) {
		return true
	}
	if err != nil {
		return false
	}
	return !c.now().Before(o.ExpiresAt.Add(c.lease()))
}

func (c *Coordinator) lease() time.Duration {
	if c.cfg.ExpiryLease > 0 {
		return c.cfg.ExpiryLease
	}
	return 30 * time.Second
}

// ProcessDue claims every expiry due now and handles it. An entry is
// acknowledged only after it was handled; a failed one comes back once its
// lease runs out. Failures of one entry do not stop the others.
func (c *Coordinator) ProcessDue(ctx context.Context) error {
	due, err := c.scheduler.ClaimDue(ctx, c.now(), c.lease())
	if err != nil {
		return fmt.Errorf("claim expiries: %w", err)
	}
	for _, e := range due {
		log := c.log.With(
			logging.String("service_id", string(e.ServiceID)),
			logging.String("offer_id", string(e.OfferID)))
		if err := c.HandleExpiry(ctx, e); err != nil {
			log.Error(ctx, "expiry handling failed; will retry", logging.Err(err))
			continue
		}
		if err := c.scheduler.Ack(ctx, e); err != nil {
			log.Warn(ctx, "failed to acknowledge expiry", logging.Err(err))
		}
	}
	return nil
}

// RunExpiryLoop polls the scheduler every ExpiryTick until ctx is done.
func (c *Coordinator) RunExpiryLoop(ctx context.Context) {
	tick := c.cfg.ExpiryTick
	if tick <= 0 {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ProcessDue(ctx); err != nil {
				c.log.Error(ctx, "expiry poll failed", logging.Err(err))
			}
		}
	}
}

// advance walks the queue from index from, skipping candidates that fail the
// contact-time checks, until one offer is sent or the queue is exhausted.
// Callers hold the request lock.
func (c *Coordinator) advance(ctx context.Context, run *Run, from int) error {
	for i := from; i < len(run.Candidates); i++ {
		req, err := c.services.Get(ctx, run.ServiceID)
		if err != nil {
			return fmt.Errorf("reload service request: %w", err)
		}
		if req.Assigned() {
			c.metrics.RunFinished("assigned_elsewhere")
			return c.runs.Delete(ctx, run.ServiceID)
		}

		cand := run.Candidates[i]
		log := c.log.With(
			logging.String("service_id", string(run.ServiceID)),
			logging.String("agent_id", string(cand.AgentID)),
			logging.Int("index", i))

		if reason := c.contact(ctx, log, run, i); reason != "" {
			c.metrics.CandidateSkipped(reason)
			log.Info(ctx, "candidate skipped", logging.String("reason", reason))
			continue
		}
		return nil
	}

	c.log.Info(ctx, "all candidates exhausted; dispatch run ended",
		logging.String("service_id", string(run.ServiceID)),
		logging.Int("candidates", len(run.Candidates)))
	c.metrics.RunFinished("exhausted")
	return c.runs.Delete(ctx, run.ServiceID)
}

// contact runs the contact-time checks for candidate i and sends the offer.
// It returns the skip reason, or "" when an offer is outstanding.
func (c *Coordinator) contact(ctx context.Context, log logging.Logger, run *Run, i int) string {
	ctx, span := c.tracer.Start(ctx, "dispatch.contact", trace.WithAttributes(attribute.Int("index", i)))
	defer span.End()

	cand := run.Candidates[i]
	a, err := c.agents.Get(ctx, cand.AgentID)
	if err != nil || !a.HasValidLocation() {
		return skipAgentUnavailable
	}

	el, err := c.ranker.Precise(ctx, run.Location, *a.Location)
	switch {
	case err != nil:
		log.Warn(ctx, "precise distance unavailable; using ranked distance", logging.Err(err))
		if cand.DistanceMiles > c.cfg.MaxDistanceMiles {
			return skipTooFar
		}
	case !el.OK():
		return skipNoRoute
	default:
		miles := el.Miles()
		if !WithinBounds(miles, el.Duration, c.cfg) {
			log.Info(ctx, "candidate out of range",
				logging.Any("miles", miles), logging.Any("travel", el.Duration.String()))
			return skipTooFar
		}
		if !a.InWorkArea(run.Location) {
			score := Flexibility(miles, el.Duration, geo.HasPolygon(a.WorkAreas), c.cfg)
			if score < c.cfg.FlexibilityThreshold {
				log.Info(ctx, "candidate outside work area and not flexible enough", logging.Any("score", score))
				return skipInflexible
			}
		}
	}

	if a.MobileNumber == "" {
		return skipNoContact
	}

	now := c.now()
	o := offer.New(run.ServiceID, a.ID, now, c.cfg.OfferTTL)
	if err := c.offers.Create(ctx, o); err != nil {
		log.Error(ctx, "failed to store offer", logging.Err(err))
		return skipContactFailed
	}
	log = log.With(logging.String("offer_id", string(o.ID)))

	// Run and expiry are stored before the link is sent.
	run.Index = i
	run.OfferID = o.ID
	if err := c.runs.Save(ctx, run); err != nil {
		log.Error(ctx, "failed to save run", logging.Err(err))
		return skipContactFailed
	}
	expiry := Expiry{
		OfferID:   o.ID,
		ServiceID: run.ServiceID,
		AgentID:   a.ID,
		Index:     i,
		DueAt:     o.ExpiresAt,
	}
	if err := c.scheduler.Schedule(ctx, expiry); err != nil {
		log.Error(ctx, "failed to schedule offer expiry", logging.Err(err))
		return skipContactFailed
	}

	msg := notify.OfferMessage(cand.DistanceMiles, cand.DirectDistance, cand.TravelTime, o.Link(c.cfg.LinkBaseURL), c.cfg.OfferTTL)
	if _, err := c.gateway.Send(ctx, a.MobileNumber, msg); err != nil {
		log.Error(ctx, "failed to send offer", logging.Err(err))
		if err := c.scheduler.Ack(ctx, expiry); err != nil {
			log.Warn(ctx, "failed to drop expiry of undelivered offer", logging.Err(err))
		}
		return skipContactFailed
	}

	c.metrics.OfferSent()
	log.Info(ctx, "offer sent", logging.Any("expires_at", o.ExpiresAt))
	return ""
}

// commit assigns the agent if nobody else did first, then confirms to the
// agent and, when the visit time is settled, to the customer.
func (c *Coordinator) commit(ctx context.Context, req *servicereq.ServiceRequest, agentID types.ID, path string) error {
	log := c.log.With(
		logging.String("service_id", string(req.ID)),
		logging.String("agent_id", string(agentID)))

	sched := req.SingleSlotSchedule()
	won, err := c.services.AssignAgent(ctx, req.ID, agentID, sched)
	if err != nil {
		return fmt.Errorf("assign agent: %w", err)
	}
	if err := c.runs.Delete(ctx, req.ID); err != nil {
		log.Warn(ctx, "failed to discard run", logging.Err(err))
	}
	if !won {
		log.Info(ctx, "service request was assigned concurrently; commit skipped")
		return nil
	}
	c.metrics.Assigned(path)
	c.metrics.RunFinished("assigned")
	log.Info(ctx, "agent assigned", logging.String("path", path))

	a, err := c.agents.Get(ctx, agentID)
	if err != nil {
		log.Warn(ctx, "assigned agent lookup failed; confirmations skipped", logging.Err(err))
		return nil
	}
	if _, err := c.gateway.Send(ctx, a.MobileNumber, notify.AcceptedMessage(string(req.ID))); err != nil {
		log.Warn(ctx, "failed to send acceptance confirmation", logging.Err(err))
	}
	if sched != nil {
		body := notify.ScheduledMessage(a.FirstName, sched.ScheduledAt)
		if _, err := c.gateway.Send(ctx, req.MobileNumber, body); err != nil {
			log.Warn(ctx, "failed to send scheduling confirmation", logging.Err(err))
		}
	}
	return nil
}

func (c *Coordinator) alertNoCoverage(ctx context.Context, req *servicereq.ServiceRequest, loc types.Point) {
	address := unknownLocation
	if c.geocoder != nil {
		if addr, err := c.geocoder.ReverseGeocode(ctx, loc); err != nil {
			c.log.Warn(ctx, "reverse geocode failed",
				logging.String("service_id", string(req.ID)), logging.Err(err))
		} else {
			address = addr
		}
	}
	c.alerts.Notify(ctx, alert.Alert{
		Type: alert.NoAgentsInWorkArea,
		Message: fmt.Sprintf("No available agents found in %s for the %s service requested by %s. The service is located at: %s.",
			req.City, strings.ToLower(string(req.Type)), req.FirstName, address),
		Context: map[string]string{
			"service_id": string(req.ID),
			"location":   fmt.Sprintf("%f,%f", loc.Lat, loc.Lng),
			"address":    address,
		},
	})
}

func (c *Coordinator) failRun(ctx context.Context, req *servicereq.ServiceRequest, reason string) {
	c.metrics.RunFinished("no_agents")
	c.log.Error(ctx, "dispatch failed", logging.String("service_id", string(req.ID)), logging.String("reason", reason))
	c.alerts.Notify(ctx, alert.Alert{
		Type:    alert.AgentAssignmentError,
		Message: fmt.Sprintf("Error finding nearest agent for service %s: %s", req.ID, reason),
		Context: map[string]string{"service_id": string(req.ID)},
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
