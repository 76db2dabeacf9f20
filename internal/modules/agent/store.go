// README: Agent store backed by PostgreSQL; work areas live in a JSONB column.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"evconnect/internal/logging"
	"evconnect/internal/types"
)

type Store struct {
	db  *pgxpool.Pool
	log logging.Logger
}

func NewStore(db *pgxpool.Pool, log logging.Logger) *Store {
	if log == nil {
		log = logging.Noop()
	}
	return &Store{db: db, log: log}
}

const agentColumns = `id, first_name, last_name, mobile_number, latitude, longitude, work_areas, updated_at`

func (s *Store) Create(ctx context.Context, a *Agent) error {
	areas, err := EncodeWorkAreas(a.WorkAreas)
	if err != nil {
		return err
	}
	var lat, lng *float64
	if a.Location != nil {
		lat, lng = &a.Location.Lat, &a.Location.Lng
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO agents (id, first_name, last_name, mobile_number, latitude, longitude, work_areas, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(a.ID), a.FirstName, a.LastName, a.MobileNumber, lat, lng, areas, time.Now(),
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Agent, error) {
	row := s.db.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1 AND deleted_at IS NULL`, string(id))
	a, err := s.scan(ctx, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAll returns every non-deleted agent in a stable order.
func (s *Store) ListAll(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.Query(ctx, `SELECT `+agentColumns+` FROM agents WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := s.scan(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE agents SET latitude = $1, longitude = $2, updated_at = NOW()
        WHERE id = $3 AND deleted_at IS NULL`,
		p.Lat, p.Lng, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) scan(ctx context.Context, row pgx.Row) (*Agent, error) {
	var a Agent
	var lat, lng sql.NullFloat64
	var rawAreas []byte
	if err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.MobileNumber, &lat, &lng, &rawAreas, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		a.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	areas, unknown, err := DecodeWorkAreas(rawAreas)
	if err != nil {
		s.log.Warn(ctx, "agent work areas unreadable", logging.String("agent_id", string(a.ID)), logging.Err(err))
	}
	for _, tag := range unknown {
		s.log.Warn(ctx, "unsupported work area type", logging.String("agent_id", string(a.ID)), logging.String("type", tag))
	}
	a.WorkAreas = areas
	return &a, nil
}
