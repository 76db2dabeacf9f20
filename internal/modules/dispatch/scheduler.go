package dispatch

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"evconnect/internal/types"
)

// Expiry is a pending timeout check for one offer.
type Expiry struct {
	OfferID   types.ID  `json:"offer_id"`
	ServiceID types.ID  `json:"service_id"`
	AgentID   types.ID  `json:"agent_id"`
	Index     int       `json:"index"`
	DueAt     time.Time `json:"due_at"`

	// member is the stored form an entry was claimed under.
	member string
}

// Scheduler holds expiry checks until they are due. Delivery is at least
// once: ClaimDue leases due entries to one caller, and an entry that is not
// acknowledged before its lease runs out is handed out again.
type Scheduler interface {
	Schedule(ctx context.Context, e Expiry) error
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration) ([]Expiry, error)
	// Ack removes an entry for good, whether claimed or still waiting.
	Ack(ctx context.Context, e Expiry) error
}

type memoryEntry struct {
	e       Expiry
	visible time.Time
}

type MemoryScheduler struct {
	mu      sync.Mutex
	entries []memoryEntry
}

func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{}
}

func (s *MemoryScheduler) Schedule(_ context.Context, e Expiry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, memoryEntry{e: e, visible: e.DueAt})
	return nil
}

func (s *MemoryScheduler) ClaimDue(_ context.Context, now time.Time, lease time.Duration) ([]Expiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Expiry
	for i := range s.entries {
		if s.entries[i].visible.After(now) {
			continue
		}
		s.entries[i].visible = now.Add(lease)
		due = append(due, s.entries[i].e)
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due, nil
}

func (s *MemoryScheduler) Ack(_ context.Context, e Expiry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.e.OfferID != e.OfferID {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
	return nil
}

// Pending returns the number of entries not yet acknowledged.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

const (
	expiryKey       = "dispatch:expiries"
	claimBatchLimit = 100
)

// claimScript moves due members to the lease deadline in one step, so two
// pollers never claim the same member within a lease.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[3])
for _, m in ipairs(due) do
  redis.call('ZADD', KEYS[1], 'XX', ARGV[2], m)
end
return due
`)

// RedisScheduler keeps expiries in a sorted set scored by the time they next
// become visible, in milliseconds. Entries survive process restarts and stay
// in the set until acknowledged.
type RedisScheduler struct {
	redis *redis.Client
	key   string
}

func NewRedisScheduler(rdb *redis.Client) *RedisScheduler {
	return &RedisScheduler{redis: rdb, key: expiryKey}
}

func (s *RedisScheduler) Schedule(ctx context.Context, e Expiry) error {
	member, err := encodeExpiry(e)
	if err != nil {
		return err
	}
	return s.redis.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(e.DueAt.UnixMilli()),
		Member: member,
	}).Err()
}

func (s *RedisScheduler) ClaimDue(ctx context.Context, now time.Time, lease time.Duration) ([]Expiry, error) {
	members, err := claimScript.Run(ctx, s.redis, []string{s.key},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(lease).UnixMilli(), 10),
		claimBatchLimit,
	).StringSlice()
	if err != nil {
		return nil, err
	}
	claimed := make([]Expiry, 0, len(members))
	for _, m := range members {
		var e Expiry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			// Undecodable members would be leased forever.
			_ = s.redis.ZRem(ctx, s.key, m).Err()
			continue
		}
		e.member = m
		claimed = append(claimed, e)
	}
	return claimed, nil
}

func (s *RedisScheduler) Ack(ctx context.Context, e Expiry) error {
	member, err := encodeExpiry(e)
	if err != nil {
		return err
	}
	return s.redis.ZRem(ctx, s.key, member).Err()
}

func encodeExpiry(e Expiry) (string, error) {
	if e.member != "" {
		return e.member, nil
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
