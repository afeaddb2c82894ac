package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserflow/browserflow/pkg/scenario"
)

func newTestRepo(t *testing.T) (*FilesystemScenarioRepository, string) {
	t.Helper()

	baseDir := t.TempDir()
	repo, err := NewFilesystemScenarioRepositoryWithPath(baseDir)
	require.NoError(t, err)
	return repo, filepath.Join(baseDir, "scenarios")
}

func testScenario(t *testing.T) *scenario.Scenario {
	t.Helper()

	s, err := scenario.New("login-flow", "logs into the app", "session-1")
	require.NoError(t, err)
	s.Steps = []*scenario.Step{
		{Action: scenario.ActionNavigate, URL: "https://example.com/{{page}}"},
		{Action: scenario.ActionType, Selector: "#user", Text: "{{username}}"},
		{Action: scenario.ActionFillForm, Fields: map[string]scenario.FormField{
			"password": {Selector: "#pass", Value: "{{password}}"},
		}, Submit: "#login"},
		{Action: scenario.ActionSelectOption, Selector: "#plan",
			Option: &scenario.OptionSpec{By: scenario.SelectByIndex, Index: 2}},
	}
	s.Variables = map[string]string{"page": "login", "username": "alice"}
	s.Touch()
	return s
}

func TestFilesystemRepository_RoundTrip(t *testing.T) {
	repo, dir := newTestRepo(t)
	s := testScenario(t)

	require.NoError(t, repo.Save(s))

	// One document per scenario id.
	_, err := os.Stat(filepath.Join(dir, s.ID.String()+".json"))
	require.NoError(t, err)

	loaded, err := repo.Load(s.ID)
	require.NoError(t, err)

	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, s.Name, loaded.Name)
	assert.Equal(t, s.Variables, loaded.Variables)
	require.Len(t, loaded.Steps, 4)
	assert.Equal(t, scenario.ActionNavigate, loaded.Steps[0].Action)
	assert.Equal(t, "https://example.com/{{page}}", loaded.Steps[0].URL)
	assert.Equal(t, "{{username}}", loaded.Steps[1].Text)
	assert.Equal(t, "#pass", loaded.Steps[2].Fields["password"].Selector)
	require.NotNil(t, loaded.Steps[3].Option)
	assert.Equal(t, 2, loaded.Steps[3].Option.Index)
	assert.Equal(t, 4, loaded.Metadata.TotalSteps)
}

func TestFilesystemRepository_SaveOverwrites(t *testing.T) {
	repo, _ := newTestRepo(t)
	s := testScenario(t)
	require.NoError(t, repo.Save(s))

	s.Name = "renamed"
	require.NoError(t, repo.Save(s))

	loaded, err := repo.Load(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.Name)
}

func TestFilesystemRepository_RejectsUnsafeIDs(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Load("../escape")
	require.Error(t, err)

	s := testScenario(t)
	s.ID = "../../etc/cron.d/evil"
	require.Error(t, repo.Save(s))

	require.Error(t, repo.Delete(".."))
}

func TestFilesystemRepository_LoadMissing(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Load("scenario_999")
	assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)
}

func TestFilesystemRepository_LoadRejectsInvalidDocument(t *testing.T) {
	repo, dir := newTestRepo(t)

	// Valid JSON that violates the schema: steps carry an unknown action.
	doc := `{
		"id": "scenario_1",
		"name": "bad",
		"steps": [{"action": "hover"}],
		"metadata": {"total_steps": 1, "created_at": "2026-01-01T00:00:00Z", "last_modified": "2026-01-01T00:00:00Z"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario_1.json"), []byte(doc), 0644))

	_, err := repo.Load("scenario_1")
	require.Error(t, err)
}

func TestFilesystemRepository_Delete(t *testing.T) {
	repo, dir := newTestRepo(t)
	s := testScenario(t)
	require.NoError(t, repo.Save(s))

	require.NoError(t, repo.Delete(s.ID))

	_, err := os.Stat(filepath.Join(dir, s.ID.String()+".json"))
	assert.True(t, os.IsNotExist(err))

	err = repo.Delete(s.ID)
	assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)
}

func TestFilesystemRepository_LoadAllSkipsCorruptFiles(t *testing.T) {
	repo, dir := newTestRepo(t)

	good := testScenario(t)
	require.NoError(t, repo.Save(good))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario_corrupt.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))

	scenarios, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, good.ID, scenarios[0].ID)
}

func TestFilesystemRepository_NoTempFileLeftBehind(t *testing.T) {
	repo, dir := newTestRepo(t)
	require.NoError(t, repo.Save(testScenario(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
