// Package storage provides the durable backends: a filesystem repository
// holding one JSON document per scenario, and a SQLite repository for
// replay history.
package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/browserflow/browserflow/pkg/scenario"
	"github.com/browserflow/browserflow/pkg/validation"
)

// FilesystemScenarioRepository implements scenario.Repository using one
// JSON file per scenario id under <base>/scenarios/.
type FilesystemScenarioRepository struct {
	baseDir string
}

// NewFilesystemScenarioRepository creates a repository rooted at the
// default app directory (~/.browserflow).
func NewFilesystemScenarioRepository() (*FilesystemScenarioRepository, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return NewFilesystemScenarioRepositoryWithPath(filepath.Join(homeDir, ".browserflow"))
}

// NewFilesystemScenarioRepositoryWithPath creates a repository with a
// custom base directory. Useful for testing.
func NewFilesystemScenarioRepositoryWithPath(baseDir string) (*FilesystemScenarioRepository, error) {
	scenariosDir := filepath.Join(baseDir, "scenarios")

	if err := os.MkdirAll(scenariosDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scenarios directory: %w", err)
	}

	return &FilesystemScenarioRepository{
		baseDir: scenariosDir,
	}, nil
}

// Save persists a scenario as a full-document overwrite. The write goes to
// a temp file first and is renamed into place so readers never see a
// partial document.
func (r *FilesystemScenarioRepository) Save(s *scenario.Scenario) error {
	if s == nil {
		return fmt.Errorf("cannot save nil scenario")
	}
	if err := validation.ValidateIdentifier(s.ID.String()); err != nil {
		return fmt.Errorf("unsafe scenario id: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario to JSON: %w", err)
	}

	filePath := r.scenarioPath(s.ID)
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save scenario file: %w", err)
	}

	return nil
}

// Load retrieves a scenario by id. The document is schema-validated before
// it is decoded.
func (r *FilesystemScenarioRepository) Load(id scenario.ScenarioID) (*scenario.Scenario, error) {
	if err := validation.ValidateIdentifier(id.String()); err != nil {
		return nil, fmt.Errorf("unsafe scenario id: %w", err)
	}

	filePath := r.scenarioPath(id)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", scenario.ErrScenarioNotFound, id)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	if err := scenario.ValidateDocument(data); err != nil {
		return nil, fmt.Errorf("invalid scenario document %s: %w", id, err)
	}

	var s scenario.Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}

	return &s, nil
}

// Delete removes a scenario's document.
func (r *FilesystemScenarioRepository) Delete(id scenario.ScenarioID) error {
	if err := validation.ValidateIdentifier(id.String()); err != nil {
		return fmt.Errorf("unsafe scenario id: %w", err)
	}

	filePath := r.scenarioPath(id)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", scenario.ErrScenarioNotFound, id)
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete scenario file: %w", err)
	}

	return nil
}

// LoadAll scans the scenarios directory and loads every readable document.
// Corrupt or invalid files are skipped with a logged warning, never a
// fatal startup error.
func (r *FilesystemScenarioRepository) LoadAll() ([]*scenario.Scenario, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios directory: %w", err)
	}

	scenarios := make([]*scenario.Scenario, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		s, err := r.Load(scenario.ScenarioID(id))
		if err != nil {
			log.Printf("Warning: skipping unreadable scenario %s: %v", id, err)
			continue
		}

		scenarios = append(scenarios, s)
	}

	return scenarios, nil
}

// scenarioPath returns the full filesystem path for a scenario id.
func (r *FilesystemScenarioRepository) scenarioPath(id scenario.ScenarioID) string {
	return filepath.Join(r.baseDir, id.String()+".json")
}
