// README: Service request aggregate and its assignment state.
package servicereq

import (
	"time"

	"evconnect/internal/types"
)

type AssignmentState string

const (
	StateUnassigned AssignmentState = "unassigned"
	StateAssigned   AssignmentState = "assigned"
)

type Type string

const (
	TypeInstallation Type = "installation"
	TypeRepair       Type = "repair"
	TypeInspection   Type = "inspection"
)

// AvailabilitySlot is a window the customer proposed for the visit.
type AvailabilitySlot struct {
	StartTime time.Time `json:"startTime" yaml:"start_time"`
	EndTime   time.Time `json:"endTime" yaml:"end_time"`
}

// Schedule is written together with the agent when the visit time is
// already settled at acceptance.
type Schedule struct {
	ScheduledAt time.Time
}

type ServiceRequest struct {
	ID            types.ID
	FirstName     string
	LastName      string
	MobileNumber  string
	Description   string
	Address       string
	City          string
	Type          Type
	Location      *types.Point
	AgentID       *types.ID
	UserAvailable []AvailabilitySlot
	ScheduledAt   *time.Time
	JobInProgress bool
	RequestedAt   time.Time
	AssignedAt    *time.Time
}

func (s *ServiceRequest) State() AssignmentState {
	if s.AgentID != nil && *s.AgentID != "" {
		return StateAssigned
	}
	return StateUnassigned
}

func (s *ServiceRequest) Assigned() bool {
	return s.State() == StateAssigned
}

// DispatchLocation returns the request location when it can be dispatched.
func (s *ServiceRequest) DispatchLocation() (types.Point, bool) {
	if s.Location == nil || !s.Location.Valid() {
		return types.Point{}, false
	}
	return *s.Location, true
}

// SingleSlotSchedule treats a lone proposed slot as the agreed visit time.
func (s *ServiceRequest) SingleSlotSchedule() *Schedule {
	if len(s.UserAvailable) != 1 {
		return nil
	}
	return &Schedule{ScheduledAt: s.UserAvailable[0].StartTime}
}
