package scenario

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
)

// DefaultListLimit caps List results when the caller does not ask for a
// specific limit.
const DefaultListLimit = 50

// exprFilterPrefix marks a List filter as a compiled expression instead of a
// plain substring match.
const exprFilterPrefix = "expr:"

// Store is the scenario table: an in-memory map of scenarios backed by a
// durable Repository. All lookups support either the scenario id or its
// name, preferring the id when both could match.
//
// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	scenarios map[ScenarioID]*Scenario
	repo      Repository
}

// NewStore creates a store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		scenarios: make(map[ScenarioID]*Scenario),
		repo:      repo,
	}
}

// LoadAll rebuilds the in-memory table from durable storage. Called once at
// process start. Unreadable documents were already skipped by the
// repository, so this never fails on individual files.
func (st *Store) LoadAll() error {
	scenarios, err := st.repo.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	for _, s := range scenarios {
		if _, exists := st.scenarios[s.ID]; exists {
			log.Printf("Warning: duplicate scenario id %s, keeping first", s.ID)
			continue
		}
		st.scenarios[s.ID] = s
	}

	return nil
}

// Put registers a scenario in the in-memory table without persisting it.
// Used when recording starts: the scenario must be findable by name before
// it has ever been saved.
func (st *Store) Put(s *Scenario) error {
	if s == nil {
		return fmt.Errorf("cannot put nil scenario")
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.scenarios[s.ID]; exists {
		return fmt.Errorf("scenario already exists: %s", s.ID)
	}
	st.scenarios[s.ID] = s
	return nil
}

// Save persists a scenario that is already in the table, or adds and
// persists it in one go.
func (st *Store) Save(s *Scenario) error {
	if s == nil {
		return fmt.Errorf("cannot save nil scenario")
	}

	st.mu.Lock()
	st.scenarios[s.ID] = s
	st.mu.Unlock()

	if err := st.repo.Save(s); err != nil {
		return fmt.Errorf("failed to persist scenario %s: %w", s.ID, err)
	}
	return nil
}

// Get retrieves a scenario by id or name. Id match wins; name lookup is a
// linear scan and returns the most recently modified match. The result is a
// deep copy, so callers can walk its steps while another goroutine updates
// the stored scenario.
func (st *Store) Get(idOrName string) (*Scenario, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, err := st.lookupLocked(idOrName)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// lookupLocked resolves idOrName against the table. Caller holds the lock.
func (st *Store) lookupLocked(idOrName string) (*Scenario, error) {
	if idOrName == "" {
		return nil, fmt.Errorf("%w: empty id or name", ErrScenarioNotFound)
	}

	if s, ok := st.scenarios[ScenarioID(idOrName)]; ok {
		return s, nil
	}

	var match *Scenario
	for _, s := range st.scenarios {
		if s.Name != idOrName {
			continue
		}
		if match == nil || s.Metadata.LastModified.After(match.Metadata.LastModified) {
			match = s
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, idOrName)
	}
	return match, nil
}

// List returns scenario summaries sorted by last modification, newest
// first. An empty filter matches everything; a plain filter is a
// case-insensitive substring match on name and description; a filter
// prefixed with "expr:" is compiled and evaluated per scenario against an
// environment of its summary fields.
func (st *Store) List(filter string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	match, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	st.mu.RLock()
	summaries := make([]Summary, 0, len(st.scenarios))
	for _, s := range st.scenarios {
		summary := s.Summarize()
		ok, err := match(summary)
		if err != nil {
			st.mu.RUnlock()
			return nil, fmt.Errorf("filter evaluation failed for %s: %w", s.ID, err)
		}
		if ok {
			summaries = append(summaries, summary)
		}
	}
	st.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastModified.After(summaries[j].LastModified)
	})

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// compileFilter turns a List filter string into a predicate over summaries.
func compileFilter(filter string) (func(Summary) (bool, error), error) {
	if filter == "" {
		return func(Summary) (bool, error) { return true, nil }, nil
	}

	if src, ok := strings.CutPrefix(filter, exprFilterPrefix); ok {
		program, err := expr.Compile(src, expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("invalid filter expression: %w", err)
		}
		return func(s Summary) (bool, error) {
			env := map[string]interface{}{
				"id":          s.ID.String(),
				"name":        s.Name,
				"description": s.Description,
				"total_steps": s.TotalSteps,
				"created_at":  s.CreatedAt,
				"modified_at": s.LastModified,
			}
			out, err := expr.Run(program, env)
			if err != nil {
				return false, err
			}
			ok, _ := out.(bool)
			return ok, nil
		}, nil
	}

	needle := strings.ToLower(filter)
	return func(s Summary) (bool, error) {
		return strings.Contains(strings.ToLower(s.Name), needle) ||
			strings.Contains(strings.ToLower(s.Description), needle), nil
	}, nil
}

// Patch describes an update to a scenario. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Description *string
	Steps       []*Step
	Variables   map[string]string
}

// Update applies a patch to the scenario identified by id or name,
// recomputes metadata, and persists the result. It returns the updated
// scenario and the names of the fields that changed.
func (st *Store) Update(idOrName string, patch Patch) (*Scenario, []string, error) {
	st.mu.Lock()

	s, err := st.lookupLocked(idOrName)
	if err != nil {
		st.mu.Unlock()
		return nil, nil, err
	}

	var updated []string
	if patch.Name != nil && *patch.Name != "" && *patch.Name != s.Name {
		s.Name = *patch.Name
		updated = append(updated, "name")
	}
	if patch.Description != nil && *patch.Description != s.Description {
		s.Description = *patch.Description
		updated = append(updated, "description")
	}
	if patch.Steps != nil {
		for i, step := range patch.Steps {
			if step == nil {
				st.mu.Unlock()
				return nil, nil, fmt.Errorf("step %d is nil", i)
			}
			if err := step.Validate(); err != nil {
				st.mu.Unlock()
				return nil, nil, fmt.Errorf("step %d: %w", i, err)
			}
		}
		s.Steps = patch.Steps
		updated = append(updated, "steps")
	}
	if patch.Variables != nil {
		s.Variables = patch.Variables
		updated = append(updated, "variables")
	}

	if len(updated) > 0 {
		s.Touch()
	}
	st.mu.Unlock()

	if len(updated) > 0 {
		if err := st.repo.Save(s); err != nil {
			return nil, nil, fmt.Errorf("failed to persist scenario %s: %w", s.ID, err)
		}
	}

	return s, updated, nil
}

// Delete removes a scenario from memory and durable storage. It refuses to
// proceed without the explicit confirm flag: the caller gets
// ErrConfirmRequired, not a silent no-op.
func (st *Store) Delete(idOrName string, confirm bool) (*Scenario, error) {
	st.mu.Lock()

	s, err := st.lookupLocked(idOrName)
	if err != nil {
		st.mu.Unlock()
		return nil, err
	}

	if !confirm {
		st.mu.Unlock()
		return s, fmt.Errorf("%w: deleting scenario %q is destructive, pass confirm=true", ErrConfirmRequired, s.Name)
	}

	delete(st.scenarios, s.ID)
	st.mu.Unlock()

	if err := st.repo.Delete(s.ID); err != nil {
		return nil, fmt.Errorf("failed to delete scenario %s: %w", s.ID, err)
	}
	return s, nil
}

// MarkUsed stamps LastUsedAt on the scenario and persists it, best effort.
// Replay must not fail because the usage stamp could not be written.
func (st *Store) MarkUsed(s *Scenario) {
	st.mu.Lock()
	s.MarkUsed()
	persist := s
	if stored, ok := st.scenarios[s.ID]; ok {
		stored.Metadata.LastUsedAt = s.Metadata.LastUsedAt
		persist = stored.Clone()
	}
	st.mu.Unlock()

	if err := st.repo.Save(persist); err != nil {
		log.Printf("Warning: failed to persist last-used stamp for %s: %v", s.ID, err)
	}
}

// Len reports how many scenarios are loaded.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.scenarios)
}
