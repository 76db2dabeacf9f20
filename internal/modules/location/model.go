// README: Agent location snapshot for persistence and replay.
package location

import (
	"time"

	"evconnect/internal/types"
)

type Snapshot struct {
	ID         int64
	AgentID    types.ID
	Position   types.Point
	RecordedAt time.Time
}

// Nearby is an agent found by a radius search over live positions.
type Nearby struct {
	AgentID       types.ID
	Position      types.Point
	DistanceMiles float64
}
