// README: Dispatch run state (ranked candidate queue) and its stores.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"evconnect/internal/modules/ranking"
	"evconnect/internal/types"
)

// Run is the state of one dispatch attempt for a service request: the ranked
// queue, the position reached and the offer currently outstanding.
type Run struct {
	ServiceID        types.ID            `json:"service_id"`
	Location         types.Point         `json:"location"`
	Candidates       []ranking.Candidate `json:"candidates"`
	Index            int                 `json:"index"`
	OfferID          types.ID            `json:"offer_id,omitempty"`
	WorkAreaFallback bool                `json:"work_area_fallback"`
	StartedAt        time.Time           `json:"started_at"`
}

// RunStore keeps at most one run per service request.
type RunStore interface {
	Save(ctx context.Context, run *Run) error
	// Load reports false when no run exists for the request.
	Load(ctx context.Context, serviceID types.ID) (*Run, bool, error)
	Delete(ctx context.Context, serviceID types.ID) error
}

type MemoryRunStore struct {
	mu   sync.Mutex
	runs map[types.ID][]byte
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: map[types.ID][]byte{}}
}

func (s *MemoryRunStore) Save(_ context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ServiceID] = data
	return nil
}

func (s *MemoryRunStore) Load(_ context.Context, serviceID types.ID) (*Run, bool, error) {
	s.mu.Lock()
	data, ok := s.runs[serviceID]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, false, err
	}
	return &run, true, nil
}

func (s *MemoryRunStore) Delete(_ context.Context, serviceID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, serviceID)
	return nil
}

const runKeyPrefix = "dispatch:run:%s"

// RedisRunStore keeps runs as JSON values that expire after ttl, so a run
// abandoned by a crashed process does not block the request forever.
type RedisRunStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisRunStore(rdb *redis.Client, ttl time.Duration) *RedisRunStore {
	return &RedisRunStore{redis: rdb, ttl: ttl}
}

func (s *RedisRunStore) Save(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, runKey(run.ServiceID), data, s.ttl).Err()
}

func (s *RedisRunStore) Load(ctx context.Context, serviceID types.ID) (*Run, bool, error) {
	data, err := s.redis.Get(ctx, runKey(serviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, false, fmt.Errorf("decode run %s: %w", serviceID, err)
	}
	return &run, true, nil
}

func (s *RedisRunStore) Delete(ctx context.Context, serviceID types.ID) error {
	return s.redis.Del(ctx, runKey(serviceID)).Err()
}

func runKey(serviceID types.ID) string {
	return fmt.Sprintf(runKeyPrefix, string(serviceID))
}
