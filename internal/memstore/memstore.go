// README: In-memory stores used by the simulator and by tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"evconnect/internal/geo"
	"evconnect/internal/modules/agent"
	"evconnect/internal/modules/offer"
	"evconnect/internal/modules/servicereq"
	"evconnect/internal/types"
)

// Agents keeps agents in insertion order so listings are deterministic.
type Agents struct {
	mu    sync.RWMutex
	order []types.ID
	byID  map[types.ID]*agent.Agent
}

func NewAgents(agents ...*agent.Agent) *Agents {
	s := &Agents{byID: map[types.ID]*agent.Agent{}}
	for _, a := range agents {
		s.Put(a)
	}
	return s
}

func (s *Agents) Put(a *agent.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.byID[a.ID] = copyAgent(a)
}

func (s *Agents) Get(_ context.Context, id types.ID) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, agent.ErrNotFound
	}
	return copyAgent(a), nil
}

func (s *Agents) ListAll(_ context.Context) ([]*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyAgent(s.byID[id]))
	}
	return out, nil
}

func (s *Agents) UpdateLocation(_ context.Context, id types.ID, p types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return agent.ErrNotFound
	}
	loc := p
	a.Location = &loc
	a.UpdatedAt = time.Now()
	return nil
}

func copyAgent(a *agent.Agent) *agent.Agent {
	cp := *a
	if a.Location != nil {
		loc := *a.Location
		cp.Location = &loc
	}
	cp.WorkAreas = append([]geo.WorkArea(nil), a.WorkAreas...)
	return &cp
}

// ServiceRequests mirrors the compare-and-swap assignment of the SQL store.
type ServiceRequests struct {
	mu   sync.Mutex
	byID map[types.ID]*servicereq.ServiceRequest
	now  func() time.Time
}

func NewServiceRequests() *ServiceRequests {
	return &ServiceRequests{byID: map[types.ID]*servicereq.ServiceRequest{}, now: time.Now}
}

// WithClock sets the time stamped on assignments.
func (s *ServiceRequests) WithClock(now func() time.Time) *ServiceRequests {
	s.now = now
	return s
}

func (s *ServiceRequests) Create(_ context.Context, r *servicereq.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.ID] = copyRequest(r)
	return nil
}

func (s *ServiceRequests) Get(_ context.Context, id types.ID) (*servicereq.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, servicereq.ErrNotFound
	}
	return copyRequest(r), nil
}

func (s *ServiceRequests) AssignAgent(_ context.Context, id, agentID types.ID, sched *servicereq.Schedule) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok || r.Assigned() {
		return false, nil
	}
	aid := agentID
	at := s.now()
	r.AgentID = &aid
	r.AssignedAt = &at
	if sched != nil {
		when := sched.ScheduledAt
		r.ScheduledAt = &when
		r.JobInProgress = true
	}
	return true, nil
}

func copyRequest(r *servicereq.ServiceRequest) *servicereq.ServiceRequest {
	cp := *r
	if r.Location != nil {
		loc := *r.Location
		cp.Location = &loc
	}
	if r.AgentID != nil {
		id := *r.AgentID
		cp.AgentID = &id
	}
	if r.ScheduledAt != nil {
		t := *r.ScheduledAt
		cp.ScheduledAt = &t
	}
	if r.AssignedAt != nil {
		t := *r.AssignedAt
		cp.AssignedAt = &t
	}
	cp.UserAvailable = append([]servicereq.AvailabilitySlot(nil), r.UserAvailable...)
	return &cp
}

type Offers struct {
	mu    sync.Mutex
	order []types.ID
	byID  map[types.ID]*offer.Offer
}

func NewOffers() *Offers {
	return &Offers{byID: map[types.ID]*offer.Offer{}}
}

func (s *Offers) Create(_ context.Context, o *offer.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[o.ID]; !ok {
		s.order = append(s.order, o.ID)
	}
	s.byID[o.ID] = copyOffer(o)
	return nil
}

func (s *Offers) Get(_ context.Context, id types.ID) (*offer.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return nil, offer.ErrNotFound
	}
	return copyOffer(o), nil
}

func (s *Offers) MarkClicked(_ context.Context, id types.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[id]
	if !ok {
		return false, offer.ErrNotFound
	}
	if o.ClickedAt != nil {
		return false, nil
	}
	t := at
	o.ClickedAt = &t
	return true, nil
}

// ListByService returns the offers of one request in creation order.
func (s *Offers) ListByService(id types.ID) []*offer.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*offer.Offer
	for _, oid := range s.order {
		if o := s.byID[oid]; o.ServiceID == id {
			out = append(out, copyOffer(o))
		}
	}
	return out
}

func copyOffer(o *offer.Offer) *offer.Offer {
	cp := *o
	if o.ClickedAt != nil {
		t := *o.ClickedAt
		cp.ClickedAt = &t
	}
	return &cp
}
