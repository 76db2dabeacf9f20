// README: Service request intake and lookups.
package servicereq

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"evconnect/internal/types"
)

var (
	ErrNotFound   = errors.New("service request not found")
	ErrBadRequest = errors.New("bad request")
)

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, r *ServiceRequest) error
	Get(ctx context.Context, id types.ID) (*ServiceRequest, error)
}

type Service struct {
	store Repository
	now   func() time.Time
}

func NewService(store Repository) *Service {
	return &Service{store: store, now: time.Now}
}

type CreateCommand struct {
	FirstName     string
	LastName      string
	MobileNumber  string
	Description   string
	Address       string
	City          string
	Type          Type
	Location      *types.Point
	UserAvailable []AvailabilitySlot
}

// Create validates and stores a new unassigned request. Missing or invalid
// coordinates are accepted; such requests are simply not dispatchable.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*ServiceRequest, error) {
	if strings.TrimSpace(cmd.FirstName) == "" || strings.TrimSpace(cmd.MobileNumber) == "" || strings.TrimSpace(cmd.Address) == "" {
		return nil, ErrBadRequest
	}
	for _, slot := range cmd.UserAvailable {
		if slot.EndTime.Before(slot.StartTime) {
			return nil, ErrBadRequest
		}
	}
	if cmd.Type == "" {
		cmd.Type = TypeInstallation
	}

	r := &ServiceRequest{
		ID:            newID(),
		FirstName:     cmd.FirstName,
		LastName:      cmd.LastName,
		MobileNumber:  cmd.MobileNumber,
		Description:   cmd.Description,
		Address:       cmd.Address,
		City:          cmd.City,
		Type:          cmd.Type,
		Location:      cmd.Location,
		UserAvailable: cmd.UserAvailable,
		RequestedAt:   s.now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*ServiceRequest, error) {
	return s.store.Get(ctx, id)
}

func newID() types.ID {
	return types.ID(uuid.NewString())
}
