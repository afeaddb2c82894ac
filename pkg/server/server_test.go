package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/browserflow/browserflow/pkg/driver/drivertest"
	"github.com/browserflow/browserflow/pkg/recording"
	"github.com/browserflow/browserflow/pkg/replay"
	"github.com/browserflow/browserflow/pkg/scenario"
)

// memRepo is a minimal in-memory scenario.Repository.
type memRepo struct {
	docs map[scenario.ScenarioID]*scenario.Scenario
}

func newMemRepo() *memRepo {
	return &memRepo{docs: make(map[scenario.ScenarioID]*scenario.Scenario)}
}

func (r *memRepo) Save(s *scenario.Scenario) error {
	r.docs[s.ID] = s.Clone()
	return nil
}

func (r *memRepo) Load(id scenario.ScenarioID) (*scenario.Scenario, error) {
	s, ok := r.docs[id]
	if !ok {
		return nil, scenario.ErrScenarioNotFound
	}
	return s.Clone(), nil
}

func (r *memRepo) Delete(id scenario.ScenarioID) error {
	delete(r.docs, id)
	return nil
}

func (r *memRepo) LoadAll() ([]*scenario.Scenario, error) {
	out := make([]*scenario.Scenario, 0, len(r.docs))
	for _, s := range r.docs {
		out = append(out, s.Clone())
	}
	return out, nil
}

// testServer wires a server over fakes. The replay engine runs with a zero
// step delay and a temp screenshots dir.
func testServer(t *testing.T) (*Server, *drivertest.FakeRegistry, *scenario.Store) {
	t.Helper()

	store := scenario.NewStore(newMemRepo())
	registry := drivertest.NewFakeRegistry()
	recorder := recording.NewController(store)
	engine := replay.NewEngine(store, registry, nil, t.TempDir())
	engine.SetStepDelay(0)

	return New(store, recorder, engine, registry), registry, store
}

// call runs one tools/call round trip and decodes the result envelope.
func call(t *testing.T, s *Server, tool string, args interface{}) map[string]interface{} {
	t.Helper()

	argsJSON, err := json.Marshal(args)
	require.NoError(t, err)

	line := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":%q,"arguments":%s}}`,
		tool, argsJSON)

	resp := s.handleMessage(context.Background(), []byte(line))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error, "tool failures must be results, not protocol errors")

	// Round-trip through JSON so the envelope looks exactly like a client
	// would see it.
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope
}

func callOK(t *testing.T, s *Server, tool string, args interface{}) map[string]interface{} {
	t.Helper()

	envelope := call(t, s, tool, args)
	require.Equal(t, true, envelope["success"], "tool %s failed: %v", tool, envelope["error"])
	result, _ := envelope["result"].(map[string]interface{})
	return result
}

func callFail(t *testing.T, s *Server, tool string, args interface{}) map[string]interface{} {
	t.Helper()

	envelope := call(t, s, tool, args)
	require.Equal(t, false, envelope["success"], "tool %s unexpectedly succeeded", tool)
	toolErr, ok := envelope["error"].(map[string]interface{})
	require.True(t, ok)
	return toolErr
}

func TestInitialize(t *testing.T) {
	s, _, _ := testServer(t)

	resp := s.handleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	info, ok := result["serverInfo"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "browserflow", info["name"])
	assert.Equal(t, Version, info["version"])
}

func TestToolsList(t *testing.T) {
	s, _, _ := testServer(t)

	resp := s.handleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]interface{})
	tools := result["tools"].([]Tool)

	names := make(map[string]bool, len(tools))
	for _, tool := range tools {
		names[tool.Name] = true
	}

	for _, want := range []string{
		"record_scenario", "stop_recording_scenario", "replay_scenario",
		"list_scenarios", "update_scenario", "delete_scenario",
		"create_session", "close_session", "list_sessions",
		"navigate", "click", "type", "execute_script", "screenshot",
		"fill_form", "select_option", "wait_for_page_change",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestUnknownMethod(t *testing.T) {
	s, _, _ := testServer(t)

	resp := s.handleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":3,"method":"bogus"}`))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestParseError(t *testing.T) {
	s, _, _ := testServer(t)

	resp := s.handleMessage(context.Background(), []byte(`{not json`))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeParseError, resp.Error.Code)
}

func TestUnknownTool(t *testing.T) {
	s, _, _ := testServer(t)

	resp := s.handleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"bogus","arguments":{}}}`))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRecordReplayFlow(t *testing.T) {
	s, registry, store := testServer(t)

	// Open a session and start recording on it.
	created := callOK(t, s, "create_session", map[string]interface{}{})
	sessionID := created["sessionId"].(string)

	callOK(t, s, "record_scenario", map[string]interface{}{
		"sessionId":    sessionID,
		"scenarioName": "login-flow",
		"description":  "logs in",
	})

	// Drive the browser; each successful action lands in the recording.
	callOK(t, s, "navigate", map[string]interface{}{
		"sessionId": sessionID,
		"url":       "https://example.com/login",
	})
	callOK(t, s, "type", map[string]interface{}{
		"sessionId": sessionID,
		"selector":  "#user",
		"text":      "{{username}}",
	})
	callOK(t, s, "click", map[string]interface{}{
		"sessionId": sessionID,
		"selector":  "#submit",
	})

	stopped := callOK(t, s, "stop_recording_scenario", map[string]interface{}{
		"scenarioName": "login-flow",
	})
	assert.EqualValues(t, 3, stopped["totalSteps"])
	assert.Equal(t, true, stopped["saved"])

	// The captured steps are stored verbatim, placeholders included.
	saved, err := store.Get("login-flow")
	require.NoError(t, err)
	require.Len(t, saved.Steps, 3)
	assert.Equal(t, "{{username}}", saved.Steps[1].Text)

	// Replay against a fresh driver and check substitution end to end.
	drv := drivertest.NewFakeDriver()
	registry.NextDriver = drv

	replayed := callOK(t, s, "replay_scenario", map[string]interface{}{
		"scenarioName": "login-flow",
		"fastMode":     true,
		"variables":    map[string]string{"username": "alice"},
	})
	assert.EqualValues(t, 3, replayed["executed_steps"])
	assert.EqualValues(t, 0, replayed["failed_steps"])
	assert.Equal(t, "alice", drv.Calls[1].Text)
}

func TestRecordScenario_UnknownSession(t *testing.T) {
	s, _, _ := testServer(t)

	toolErr := callFail(t, s, "record_scenario", map[string]interface{}{
		"sessionId":    "missing",
		"scenarioName": "x",
	})
	assert.Equal(t, string(KindNotFound), toolErr["kind"])
}

func TestRecordScenario_ConflictOnSecondStart(t *testing.T) {
	s, _, _ := testServer(t)

	created := callOK(t, s, "create_session", map[string]interface{}{})
	sessionID := created["sessionId"].(string)

	callOK(t, s, "record_scenario", map[string]interface{}{
		"sessionId": sessionID, "scenarioName": "first",
	})
	toolErr := callFail(t, s, "record_scenario", map[string]interface{}{
		"sessionId": sessionID, "scenarioName": "second",
	})
	assert.Equal(t, string(KindConflict), toolErr["kind"])
}

func TestBrowserAction_FailureIsStepFailed(t *testing.T) {
	s, registry, store := testServer(t)

	drv := drivertest.NewFakeDriver()
	drv.FailOn["click"] = errors.New("element not found")
	registry.Add(&drivertest.FakeSession{SessionID: "sess", Drv: drv})

	callOK(t, s, "record_scenario", map[string]interface{}{
		"sessionId": "sess", "scenarioName": "x",
	})

	toolErr := callFail(t, s, "click", map[string]interface{}{
		"sessionId": "sess", "selector": "#gone",
	})
	assert.Equal(t, string(KindStepFailed), toolErr["kind"])

	// Failed actions never land in the recording.
	callOK(t, s, "stop_recording_scenario", map[string]interface{}{"scenarioName": "x"})
	saved, err := store.Get("x")
	require.NoError(t, err)
	assert.Empty(t, saved.Steps)
}

func TestBrowserAction_ValidationFailure(t *testing.T) {
	s, registry, _ := testServer(t)
	registry.Add(&drivertest.FakeSession{SessionID: "sess", Drv: drivertest.NewFakeDriver()})

	toolErr := callFail(t, s, "navigate", map[string]interface{}{
		"sessionId": "sess",
	})
	assert.Equal(t, string(KindValidation), toolErr["kind"])
}

func TestDeleteScenario_RequiresConfirm(t *testing.T) {
	s, _, store := testServer(t)

	sc, err := scenario.New("doomed", "", "sess")
	require.NoError(t, err)
	require.NoError(t, store.Save(sc))

	toolErr := callFail(t, s, "delete_scenario", map[string]interface{}{
		"scenarioName": "doomed",
	})
	assert.Equal(t, string(KindValidation), toolErr["kind"])

	_, err = store.Get("doomed")
	require.NoError(t, err, "refused delete must leave the scenario intact")

	result := callOK(t, s, "delete_scenario", map[string]interface{}{
		"scenarioName": "doomed",
		"confirm":      true,
	})
	assert.Equal(t, true, result["deleted"])

	_, err = store.Get("doomed")
	assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)
}

func TestReplayScenario_NotFound(t *testing.T) {
	s, _, _ := testServer(t)

	toolErr := callFail(t, s, "replay_scenario", map[string]interface{}{
		"scenarioName": "missing",
	})
	assert.Equal(t, string(KindNotFound), toolErr["kind"])
}

func TestReplayScenario_StopOnErrorCarriesPartialReport(t *testing.T) {
	s, registry, store := testServer(t)

	sc, err := scenario.New("flaky", "", "sess")
	require.NoError(t, err)
	sc.Steps = []*scenario.Step{
		{Action: scenario.ActionNavigate, URL: "https://example.com"},
		{Action: scenario.ActionClick, Selector: "#gone"},
	}
	sc.Touch()
	require.NoError(t, store.Save(sc))

	drv := drivertest.NewFakeDriver()
	drv.FailOn["click"] = errors.New("element not found")
	registry.NextDriver = drv

	toolErr := callFail(t, s, "replay_scenario", map[string]interface{}{
		"scenarioName": "flaky",
		"fastMode":     true,
		"stopOnError":  true,
	})
	assert.Equal(t, string(KindStepFailed), toolErr["kind"])

	report, ok := toolErr["data"].(map[string]interface{})
	require.True(t, ok, "abort must carry the partial report")
	assert.EqualValues(t, 2, report["executed_steps"])
	assert.EqualValues(t, 1, report["failed_steps"])
	assert.Equal(t, true, report["aborted"])
}

func TestListScenarios(t *testing.T) {
	s, _, store := testServer(t)

	for _, name := range []string{"alpha", "beta"} {
		sc, err := scenario.New(name, "", "sess")
		require.NoError(t, err)
		require.NoError(t, store.Save(sc))
	}

	result := callOK(t, s, "list_scenarios", map[string]interface{}{})
	assert.EqualValues(t, 2, result["count"])

	filtered := callOK(t, s, "list_scenarios", map[string]interface{}{"filter": "alp"})
	assert.EqualValues(t, 1, filtered["count"])
}

func TestUpdateScenario(t *testing.T) {
	s, _, store := testServer(t)

	sc, err := scenario.New("old-name", "", "sess")
	require.NoError(t, err)
	require.NoError(t, store.Save(sc))

	result := callOK(t, s, "update_scenario", map[string]interface{}{
		"scenarioName": "old-name",
		"newName":      "new-name",
		"variables":    map[string]string{"user": "alice"},
	})
	updated, ok := result["updated"].([]interface{})
	require.True(t, ok)
	assert.Len(t, updated, 2)

	got, err := store.Get("new-name")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"user": "alice"}, got.Variables)
}

func TestSessionLifecycleTools(t *testing.T) {
	s, _, _ := testServer(t)

	created := callOK(t, s, "create_session", map[string]interface{}{})
	sessionID := created["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	listed := callOK(t, s, "list_sessions", map[string]interface{}{})
	assert.EqualValues(t, 1, listed["count"])

	callOK(t, s, "close_session", map[string]interface{}{"sessionId": sessionID})

	listed = callOK(t, s, "list_sessions", map[string]interface{}{})
	assert.EqualValues(t, 0, listed["count"])

	toolErr := callFail(t, s, "close_session", map[string]interface{}{"sessionId": sessionID})
	assert.Equal(t, string(KindNotFound), toolErr["kind"])
}
