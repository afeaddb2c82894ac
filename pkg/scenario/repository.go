package scenario

// Repository defines the persistence contract for scenarios. Implementations
// store one full document per scenario id; saves are whole-document
// overwrites, never deltas.
type Repository interface {
	// Save persists a scenario, overwriting any existing document.
	Save(s *Scenario) error

	// Load retrieves a scenario by its id.
	Load(id ScenarioID) (*Scenario, error)

	// Delete removes a scenario's document.
	Delete(id ScenarioID) error

	// LoadAll retrieves every readable scenario. Corrupt or invalid
	// documents are skipped, not fatal.
	LoadAll() ([]*Scenario, error)
}
