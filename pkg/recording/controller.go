// Package recording tracks in-progress scenario captures. A recording is
// transient, in-memory state: it is created when capture starts, consumed
// when capture stops, and never survives a process restart.
package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/browserflow/browserflow/pkg/scenario"
)

// Common recording errors
var (
	// ErrRecordingActive is returned when a recording is already in
	// progress for the session
	ErrRecordingActive = errors.New("recording already active for session")

	// ErrNoActiveRecording is returned when stop finds no recording to
	// consume
	ErrNoActiveRecording = errors.New("no active recording")
)

// ActiveRecording accumulates steps for one session while it is recording.
type ActiveRecording struct {
	SessionID  string
	ScenarioID scenario.ScenarioID
	Steps      []*scenario.Step
	StartTime  time.Time
}

// Controller manages at most one active recording per session. It is safe
// for concurrent use; recordings on different sessions proceed
// independently.
type Controller struct {
	mu     sync.Mutex
	active map[string]*ActiveRecording
	store  *scenario.Store
}

// NewController creates a controller writing finished captures into the
// given store.
func NewController(store *scenario.Store) *Controller {
	return &Controller{
		active: make(map[string]*ActiveRecording),
		store:  store,
	}
}

// Start begins capturing steps for the session. It fails without side
// effects if a recording is already active for that session. The created
// scenario is registered in the store (so it is findable by name) but not
// persisted until Stop.
func (c *Controller) Start(sessionID, scenarioName, description string) (*scenario.Scenario, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.active[sessionID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRecordingActive, sessionID)
	}

	s, err := scenario.New(scenarioName, description, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(s); err != nil {
		return nil, err
	}

	c.active[sessionID] = &ActiveRecording{
		SessionID:  sessionID,
		ScenarioID: s.ID,
		Steps:      make([]*scenario.Step, 0),
		StartTime:  time.Now(),
	}

	return s, nil
}

// Record appends a step to the session's active recording. Steps are
// captured verbatim; substitution happens only at replay. When no
// recording is active for the session this is a no-op, not an error, so
// browser tools can call it unconditionally.
func (c *Controller) Record(sessionID string, step *scenario.Step) {
	if step == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, exists := c.active[sessionID]
	if !exists {
		return
	}

	if step.Timestamp == 0 {
		step.Timestamp = time.Now().UnixMilli()
	}
	rec.Steps = append(rec.Steps, step)
}

// IsRecording reports whether the session currently has an active
// recording.
func (c *Controller) IsRecording(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.active[sessionID]
	return exists
}

// StopResult summarizes a finished capture.
type StopResult struct {
	ScenarioID scenario.ScenarioID
	Name       string
	TotalSteps int
	Duration   time.Duration
	Saved      bool
}

// Stop finalizes the named scenario: it transfers the accumulated steps,
// recomputes metadata, optionally persists the scenario, and discards the
// active recording. It fails when the scenario is unknown or when no
// recording is active for the scenario's origin session.
func (c *Controller) Stop(scenarioName string, save bool) (*StopResult, error) {
	s, err := c.store.Get(scenarioName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	rec, exists := c.active[s.OriginSessionID]
	if !exists || rec.ScenarioID != s.ID {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w for scenario %q", ErrNoActiveRecording, scenarioName)
	}
	delete(c.active, s.OriginSessionID)
	c.mu.Unlock()

	duration := time.Since(rec.StartTime)
	s.SetSteps(rec.Steps, duration)

	if save {
		if err := c.store.Save(s); err != nil {
			return nil, err
		}
	}

	return &StopResult{
		ScenarioID: s.ID,
		Name:       s.Name,
		TotalSteps: len(rec.Steps),
		Duration:   duration,
		Saved:      save,
	}, nil
}
