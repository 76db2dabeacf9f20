// README: Location service keeps agent coordinates fresh for ranking.
package location

import (
	"context"
	"errors"
	"time"

	"evconnect/internal/logging"
	"evconnect/internal/types"
)

var ErrInvalidPosition = errors.New("invalid position")

// AgentLocations is the authoritative agent record the ranker reads.
type AgentLocations interface {
	UpdateLocation(ctx context.Context, id types.ID, p types.Point) error
}

// Tracker records live positions and history alongside the agent record.
type Tracker interface {
	SetGeo(ctx context.Context, id types.ID, pos types.Point) error
	AppendSnapshot(ctx context.Context, snap Snapshot) error
	Nearby(ctx context.Context, p types.Point, radiusMiles float64) ([]Nearby, error)
}

type Service struct {
	agents  AgentLocations
	tracker Tracker
	log     logging.Logger
	now     func() time.Time
}

func NewService(agents AgentLocations, tracker Tracker, log logging.Logger) *Service {
	if log == nil {
		log = logging.Noop()
	}
	return &Service{agents: agents, tracker: tracker, log: log, now: time.Now}
}

type Update struct {
	AgentID  types.ID
	Position types.Point
}

// Update stores a new position on the agent record. Tracker failures are
// logged; the agent record is what dispatch reads.
func (s *Service) Update(ctx context.Context, u Update) error {
	if !u.Position.Valid() {
		return ErrInvalidPosition
	}
	if err := s.agents.UpdateLocation(ctx, u.AgentID, u.Position); err != nil {
		return err
	}
	if s.tracker == nil {
		return nil
	}
	if err := s.tracker.SetGeo(ctx, u.AgentID, u.Position); err != nil {
		s.log.Warn(ctx, "failed to update live position",
			logging.String("agent_id", string(u.AgentID)), logging.Err(err))
	}
	if err := s.FlushSnapshot(ctx, u); err != nil {
		s.log.Warn(ctx, "failed to append location snapshot",
			logging.String("agent_id", string(u.AgentID)), logging.Err(err))
	}
	return nil
}

func (s *Service) FlushSnapshot(ctx context.Context, u Update) error {
	snap := Snapshot{
		AgentID:    u.AgentID,
		Position:   u.Position,
		RecordedAt: s.now(),
	}
	return s.tracker.AppendSnapshot(ctx, snap)
}

// Nearby lists agents with a live position within radiusMiles of p.
func (s *Service) Nearby(ctx context.Context, p types.Point, radiusMiles float64) ([]Nearby, error) {
	if !p.Valid() || radiusMiles <= 0 {
		return nil, ErrInvalidPosition
	}
	if s.tracker == nil {
		return nil, nil
	}
	return s.tracker.Nearby(ctx, p, radiusMiles)
}
