// README: Location store backed by Redis GEO and Postgres snapshots.
package location

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"evconnect/internal/types"
)

const agentGeoKey = "agents:positions"

// Store writes live positions to Redis and an append-only history to
// Postgres. Either backend may be nil, in which case its writes are skipped.
type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) SetGeo(ctx context.Context, id types.ID, pos types.Point) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.GeoAdd(ctx, agentGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO agent_location_snapshots (agent_id, latitude, longitude, recorded_at)
        VALUES ($1, $2, $3, $4)`,
		string(snap.AgentID), snap.Position.Lat, snap.Position.Lng, snap.RecordedAt)
	return err
}

// Nearby lists agents within radiusMiles of p, closest first.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusMiles float64) ([]Nearby, error) {
	if s.redis == nil {
		return nil, nil
	}
	results, err := s.redis.GeoSearchLocation(ctx, agentGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusMiles,
			RadiusUnit: "mi",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Nearby, len(results))
	for i, r := range results {
		out[i] = Nearby{
			AgentID:       types.ID(r.Name),
			Position:      types.Point{Lat: r.Latitude, Lng: r.Longitude},
			DistanceMiles: r.Dist,
		}
	}
	return out, nil
}

// Snapshots returns the recorded history of one agent, oldest first.
func (s *Store) Snapshots(ctx context.Context, id types.ID) ([]Snapshot, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
        SELECT id, agent_id, latitude, longitude, recorded_at
        FROM agent_location_snapshots
        WHERE agent_id = $1
        ORDER BY recorded_at, id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var agentID string
		if err := rows.Scan(&snap.ID, &agentID, &snap.Position.Lat, &snap.Position.Lng, &snap.RecordedAt); err != nil {
			return nil, err
		}
		snap.AgentID = types.ID(agentID)
		out = append(out, snap)
	}
	return out, rows.Err()
}
