package scenario

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common scenario errors
var (
	// ErrScenarioNotFound is returned when a scenario cannot be found by id or name
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrConfirmRequired is returned when a destructive operation is attempted
	// without the explicit confirmation flag
	ErrConfirmRequired = errors.New("confirmation required")
)

// ScenarioID is a unique identifier for a scenario
type ScenarioID string

// String returns the string representation of the ScenarioID
func (s ScenarioID) String() string {
	return string(s)
}

var (
	idMu     sync.Mutex
	lastIDMs int64
	idSeq    int
)

// NewScenarioID generates a new timestamp-based ScenarioID.
// IDs created within the same millisecond get a numeric suffix so they
// remain unique within the process.
func NewScenarioID() ScenarioID {
	idMu.Lock()
	defer idMu.Unlock()

	ms := time.Now().UnixMilli()
	if ms == lastIDMs {
		idSeq++
		return ScenarioID(fmt.Sprintf("scenario_%d_%d", ms, idSeq))
	}

	lastIDMs = ms
	idSeq = 0
	return ScenarioID(fmt.Sprintf("scenario_%d", ms))
}
