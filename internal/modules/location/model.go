// README: Location snapshot for persistence and replay.
package location

import (
	"time"

	"relaxedrive/internal/types"
)

type Snapshot struct {
	ID         int64
	DriverID   types.ID
	Position   types.Point
	RecordedAt time.Time
}
