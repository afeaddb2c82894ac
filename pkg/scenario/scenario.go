package scenario

import (
	"errors"
	"fmt"
	"time"
)

// Metadata holds values derived from the step list and recording timing.
// It is recomputed on every mutation, never edited independently of Steps.
type Metadata struct {
	TotalSteps      int        `json:"total_steps" yaml:"total_steps"`
	DurationSeconds float64    `json:"duration_seconds" yaml:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
	LastModified    time.Time  `json:"last_modified" yaml:"last_modified"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty" yaml:"last_used_at,omitempty"`
}

// Scenario is a named, persisted template: an ordered list of recorded
// browser actions plus default variable values for substitution.
type Scenario struct {
	ID              ScenarioID        `json:"id" yaml:"id"`
	Name            string            `json:"name" yaml:"name"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty"`
	OriginSessionID string            `json:"origin_session_id,omitempty" yaml:"origin_session_id,omitempty"`
	Steps           []*Step           `json:"steps" yaml:"steps"`
	Variables       map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Metadata        Metadata          `json:"metadata" yaml:"metadata"`
}

// New creates an empty scenario tied to the session it is being recorded
// against. The scenario is not persisted until recording stops.
func New(name, description, originSessionID string) (*Scenario, error) {
	if name == "" {
		return nil, errors.New("scenario name cannot be empty")
	}

	now := time.Now()
	return &Scenario{
		ID:              NewScenarioID(),
		Name:            name,
		Description:     description,
		OriginSessionID: originSessionID,
		Steps:           make([]*Step, 0),
		Variables:       make(map[string]string),
		Metadata: Metadata{
			CreatedAt:    now,
			LastModified: now,
		},
	}, nil
}

// SetSteps replaces the step list and recomputes derived metadata.
// The recording duration is supplied by the caller since it comes from
// recording timing, not from the steps themselves.
func (s *Scenario) SetSteps(steps []*Step, duration time.Duration) {
	s.Steps = steps
	s.Metadata.TotalSteps = len(steps)
	s.Metadata.DurationSeconds = duration.Seconds()
	s.Metadata.LastModified = time.Now()
}

// Touch recomputes derived metadata after an in-place mutation.
func (s *Scenario) Touch() {
	s.Metadata.TotalSteps = len(s.Steps)
	s.Metadata.LastModified = time.Now()
}

// MarkUsed records that the scenario was just replayed.
func (s *Scenario) MarkUsed() {
	now := time.Now()
	s.Metadata.LastUsedAt = &now
	// Replay is not a mutation of the template itself, so LastModified is
	// left alone.
}

// Validate checks the scenario and every step in it.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return errors.New("scenario: empty id")
	}
	if s.Name == "" {
		return errors.New("scenario: empty name")
	}
	for i, step := range s.Steps {
		if step == nil {
			return fmt.Errorf("scenario: step %d is nil", i)
		}
		if err := step.Validate(); err != nil {
			return fmt.Errorf("scenario: step %d: %w", i, err)
		}
	}
	return nil
}

// Summary is the listing view of a scenario: everything but the step bodies.
type Summary struct {
	ID              ScenarioID `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	OriginSessionID string     `json:"origin_session_id,omitempty"`
	TotalSteps      int        `json:"total_steps"`
	CreatedAt       time.Time  `json:"created_at"`
	LastModified    time.Time  `json:"last_modified"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
}

// Summarize builds the listing view for the scenario.
func (s *Scenario) Summarize() Summary {
	return Summary{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		OriginSessionID: s.OriginSessionID,
		TotalSteps:      s.Metadata.TotalSteps,
		CreatedAt:       s.Metadata.CreatedAt,
		LastModified:    s.Metadata.LastModified,
		LastUsedAt:      s.Metadata.LastUsedAt,
	}
}

// Clone returns a deep copy of the scenario.
func (s *Scenario) Clone() *Scenario {
	out := *s

	out.Steps = make([]*Step, len(s.Steps))
	for i, step := range s.Steps {
		out.Steps[i] = step.Clone()
	}

	out.Variables = make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		out.Variables[k] = v
	}

	if s.Metadata.LastUsedAt != nil {
		t := *s.Metadata.LastUsedAt
		out.Metadata.LastUsedAt = &t
	}

	return &out
}
