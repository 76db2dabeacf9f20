// README: Service request store backed by PostgreSQL (conditional assignment update).
package servicereq

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (s *Store) Create(ctx context.Context, r *ServiceRequest) error {
	slots, err := json.Marshal(r.UserAvailable)
	if err != nil {
		return err
	}
	var lat, lng *float64
	if r.Location != nil {
		lat, lng = &r.Location.Lat, &r.Location.Lng
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO services (
            id, first_name, last_name, mobile_number, description,
            address, city, service_type, latitude, longitude,
            user_available, requested_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9, $10,
            $11, $12
        )`,
		string(r.ID), r.FirstName, r.LastName, r.MobileNumber, r.Description,
		r.Address, r.City, string(r.Type), lat, lng,
		slots, r.RequestedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*ServiceRequest, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, first_name, last_name, mobile_number, description,
               address, city, service_type, latitude, longitude,
               agent_id, user_available, scheduled_at, is_job_in_progress,
               requested_at, assigned_at
        FROM services
        WHERE id = $1 AND deleted_at IS NULL`, string(id),
	)

	var r ServiceRequest
	var lat, lng sql.NullFloat64
	var agentID sql.NullString
	var slots []byte
	var scheduledAt, assignedAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.FirstName, &r.LastName, &r.MobileNumber, &r.Description,
		&r.Address, &r.City, &r.Type, &lat, &lng,
		&agentID, &slots, &scheduledAt, &r.JobInProgress,
		&r.RequestedAt, &assignedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		r.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if agentID.Valid {
		a := types.ID(agentID.String)
		r.AgentID = &a
	}
	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &r.UserAvailable); err != nil {
			return nil, err
		}
	}
	r.ScheduledAt = toTimePtr(scheduledAt)
	r.AssignedAt = toTimePtr(assignedAt)
	return &r, nil
}

// AssignAgent writes the agent onto the request only while no agent is set.
// It reports false when another path already assigned the request.
func (s *Store) AssignAgent(ctx context.Context, id, agentID types.ID, sched *Schedule) (bool, error) {
	var scheduledAt *time.Time
	if sched != nil {
		scheduledAt = &sched.ScheduledAt
	}
	tag, err := s.db.Exec(ctx, `
        UPDATE services
        SET agent_id = $1,
            assigned_at = NOW(),
            scheduled_at = COALESCE($2, scheduled_at),
            is_job_in_progress = CASE WHEN $2::timestamptz IS NULL THEN is_job_in_progress ELSE TRUE END
        WHERE id = $3 AND agent_id IS NULL AND deleted_at IS NULL`,
		string(agentID),
		scheduledAt,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
