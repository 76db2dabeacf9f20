// README: Offer store backed by PostgreSQL (links table).
package offer

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"evconnect/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Offer) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO links (id, service_id, agent_id, expiration_time, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		string(o.ID), string(o.ServiceID), string(o.AgentID), o.ExpiresAt, o.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Offer, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, service_id, agent_id, expiration_time, clicked_at, created_at
        FROM links WHERE id = $1`, string(id),
	)
	var o Offer
	var clickedAt sql.NullTime
	err := row.Scan(&o.ID, &o.ServiceID, &o.AgentID, &o.ExpiresAt, &clickedAt, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if clickedAt.Valid {
		t := clickedAt.Time
		o.ClickedAt = &t
	}
	return &o, nil
}

// MarkClicked records the first click only; later clicks report false.
func (s *Store) MarkClicked(ctx context.Context, id types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE links SET clicked_at = $1 WHERE id = $2 AND clicked_at IS NULL`, at, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
