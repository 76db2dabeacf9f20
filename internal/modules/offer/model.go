// README: Offer (accept link) sent to one candidate agent for one service request.
package offer

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"evconnect/internal/types"
)

var ErrNotFound = errors.New("offer not found")

type Offer struct {
	ID        types.ID
	ServiceID types.ID
	AgentID   types.ID
	ExpiresAt time.Time
	ClickedAt *time.Time
	CreatedAt time.Time
}

// New builds an offer that expires ttl after now.
func New(serviceID, agentID types.ID, now time.Time, ttl time.Duration) *Offer {
	return &Offer{
		ID:        types.ID(uuid.NewString()),
		ServiceID: serviceID,
		AgentID:   agentID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func (o *Offer) Accepted() bool {
	return o.ClickedAt != nil
}

// ExpiredAt reports whether the offer window has closed at t. The window is
// half-open: a click at exactly ExpiresAt loses to the expiry check.
func (o *Offer) ExpiredAt(t time.Time) bool {
	return !t.Before(o.ExpiresAt)
}

// Link is the accept URL the agent receives.
func (o *Offer) Link(baseURL string) string {
	if baseURL != "" && baseURL[len(baseURL)-1] != '/' {
		baseURL += "/"
	}
	return baseURL + "link/" + string(o.ID)
}
