// README: Field agent profile and dispatch eligibility rules.
package agent

import (
	"errors"
	"time"

	"evconnect/internal/geo"
	"evconnect/internal/types"
)

var ErrNotFound = errors.New("agent not found")

type Agent struct {
	ID           types.ID
	FirstName    string
	LastName     string
	MobileNumber string
	Location     *types.Point
	WorkAreas    []geo.WorkArea
	UpdatedAt    time.Time
}

func (a *Agent) HasValidLocation() bool {
	return a.Location != nil && a.Location.Valid()
}

// Eligible reports whether the agent can be offered work at all.
func (a *Agent) Eligible() bool {
	return a.HasValidLocation() && a.MobileNumber != ""
}

// InWorkArea reports whether p lies inside one of the agent's valid areas.
func (a *Agent) InWorkArea(p types.Point) bool {
	return geo.AnyContains(a.WorkAreas, p)
}

// Eligible keeps agents with valid coordinates and a contact number.
func Eligible(agents []*Agent) []*Agent {
	out := make([]*Agent, 0, len(agents))
	for _, a := range agents {
		if a != nil && a.Eligible() {
			out = append(out, a)
		}
	}
	return out
}
