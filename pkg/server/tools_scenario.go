package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/browserflow/browserflow/pkg/replay"
	"github.com/browserflow/browserflow/pkg/scenario"
)

// registerScenarioTools adds the scenario lifecycle operations.
func (s *Server) registerScenarioTools() {
	s.register(Tool{
		Name:        "record_scenario",
		Description: "Start recording browser interactions on a session as a named scenario",
		InputSchema: objectSchema(map[string]interface{}{
			"sessionId":    stringProp("Session to record against"),
			"scenarioName": stringProp("Name for the new scenario"),
			"description":  stringProp("Optional description"),
		}, "sessionId", "scenarioName"),
	}, s.handleRecordScenario)

	s.register(Tool{
		Name:        "stop_recording_scenario",
		Description: "Stop recording and finalize the named scenario",
		InputSchema: objectSchema(map[string]interface{}{
			"scenarioName": stringProp("Scenario being recorded"),
			"saveScenario": boolProp("Persist the scenario (default true)"),
		}, "scenarioName"),
	}, s.handleStopRecording)

	s.register(Tool{
		Name:        "replay_scenario",
		Description: "Replay a stored scenario, substituting variables",
		InputSchema: objectSchema(map[string]interface{}{
			"scenarioName":    stringProp("Scenario id or name"),
			"sessionId":       stringProp("Existing session; omitted means an ephemeral session"),
			"fastMode":        boolProp("Skip the inter-step delay"),
			"stopOnError":     boolProp("Abort at the first failing step"),
			"skipScreenshots": boolProp("Do not persist screenshots (default true)"),
			"takeScreenshots": boolProp("Persist screenshots captured by screenshot steps"),
			"variables":       map[string]interface{}{"type": "object", "description": "Call-time variable values"},
		}, "scenarioName"),
	}, s.handleReplayScenario)

	s.register(Tool{
		Name:        "list_scenarios",
		Description: "List stored scenarios, newest first",
		InputSchema: objectSchema(map[string]interface{}{
			"filter": stringProp("Substring match on name/description, or expr: expression"),
			"limit":  map[string]interface{}{"type": "integer", "description": "Max results (default 50)"},
		}),
	}, s.handleListScenarios)

	s.register(Tool{
		Name:        "update_scenario",
		Description: "Update a stored scenario's name, description, steps, or variables",
		InputSchema: objectSchema(map[string]interface{}{
			"scenarioName": stringProp("Scenario id or name"),
			"newName":      stringProp("New name"),
			"description":  stringProp("New description"),
			"steps":        map[string]interface{}{"type": "array", "description": "Replacement step list"},
			"variables":    map[string]interface{}{"type": "object", "description": "Replacement variable defaults"},
		}, "scenarioName"),
	}, s.handleUpdateScenario)

	s.register(Tool{
		Name:        "delete_scenario",
		Description: "Delete a stored scenario; requires confirm=true",
		InputSchema: objectSchema(map[string]interface{}{
			"scenarioName": stringProp("Scenario id or name"),
			"confirm":      boolProp("Must be true to actually delete"),
		}, "scenarioName"),
	}, s.handleDeleteScenario)
}

func (s *Server) handleRecordScenario(_ context.Context, params json.RawMessage) (interface{}, *ToolError) {
	var args struct {
		SessionID    string `json:"sessionId"`
		ScenarioName string `json:"scenarioName"`
		Description  string `json:"description"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.SessionID == "" || args.ScenarioName == "" {
		return nil, validationError("sessionId and scenarioName are required")
	}

	if _, ok := s.registry.Get(args.SessionID); !ok {
		return nil, notFoundError(fmt.Sprintf("session not found: %s", args.SessionID))
	}

	sc, err := s.recorder.Start(args.SessionID, args.ScenarioName, args.Description)
	if err != nil {
		return nil, classify(err)
	}

	return map[string]interface{}{
		"scenarioId":   sc.ID,
		"scenarioName": sc.Name,
	}, nil
}

func (s *Server) handleStopRecording(_ context.Context, params json.RawMessage) (interface{}, *ToolError) {
	var args struct {
		ScenarioName string `json:"scenarioName"`
		SaveScenario *bool  `json:"saveScenario"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.ScenarioName == "" {
		return nil, validationError("scenarioName is required")
	}

	save := true
	if args.SaveScenario != nil {
		save = *args.SaveScenario
	}

	result, err := s.recorder.Stop(args.ScenarioName, save)
	if err != nil {
		return nil, classify(err)
	}

	return map[string]interface{}{
		"scenarioId":   result.ScenarioID,
		"scenarioName": result.Name,
		"totalSteps":   result.TotalSteps,
		"duration":     result.Duration.Seconds(),
		"saved":        result.Saved,
	}, nil
}

func (s *Server) handleReplayScenario(ctx context.Context, params json.RawMessage) (interface{}, *ToolError) {
	var args struct {
		ScenarioName    string            `json:"scenarioName"`
		SessionID       string            `json:"sessionId"`
		FastMode        bool              `json:"fastMode"`
		StopOnError     bool              `json:"stopOnError"`
		SkipScreenshots *bool             `json:"skipScreenshots"`
		TakeScreenshots bool              `json:"takeScreenshots"`
		Variables       map[string]string `json:"variables"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.ScenarioName == "" {
		return nil, validationError("scenarioName is required")
	}

	skip := true
	if args.SkipScreenshots != nil {
		skip = *args.SkipScreenshots
	}

	report, err := s.engine.Replay(ctx, args.ScenarioName, replay.Options{
		SessionID:       args.SessionID,
		FastMode:        args.FastMode,
		StopOnError:     args.StopOnError,
		SkipScreenshots: skip,
		TakeScreenshots: args.TakeScreenshots,
		Variables:       args.Variables,
	})
	if err != nil {
		toolErr := classify(err)
		if report != nil {
			if report.Aborted && toolErr.Kind == KindInternal {
				toolErr.Kind = KindStepFailed
			}
			toolErr.Data = report
		}
		return nil, toolErr
	}

	return report, nil
}

func (s *Server) handleListScenarios(_ context.Context, params json.RawMessage) (interface{}, *ToolError) {
	var args struct {
		Filter string `json:"filter"`
		Limit  int    `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	summaries, err := s.store.List(args.Filter, args.Limit)
	if err != nil {
		return nil, classify(err)
	}

	return map[string]interface{}{
		"scenarios": summaries,
		"count":     len(summaries),
	}, nil
}

func (s *Server) handleUpdateScenario(_ context.Context, params json.RawMessage) (interface{}, *ToolError) {
	var args struct {
		ScenarioName string            `json:"scenarioName"`
		NewName      *string           `json:"newName"`
		Description  *string           `json:"description"`
		Steps        []*scenario.Step  `json:"steps"`
		Variables    map[string]string `json:"variables"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.ScenarioName == "" {
		return nil, validationError("scenarioName is required")
	}

	sc, updated, err := s.store.Update(args.ScenarioName, scenario.Patch{
		Name:        args.NewName,
		Description: args.Description,
		Steps:       args.Steps,
		Variables:   args.Variables,
	})
	if err != nil {
		return nil, classify(err)
	}

	return map[string]interface{}{
		"scenarioId": sc.ID,
		"updated":    updated,
	}, nil
}

func (s *Server) handleDeleteScenario(_ context.Context, params json.RawMessage) (interface{}, *ToolError) {
	var args struct {
		ScenarioName string `json:"scenarioName"`
		Confirm      bool   `json:"confirm"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.ScenarioName == "" {
		return nil, validationError("scenarioName is required")
	}

	sc, err := s.store.Delete(args.ScenarioName, args.Confirm)
	if err != nil {
		return nil, classify(err)
	}

	return map[string]interface{}{
		"scenarioId":   sc.ID,
		"scenarioName": sc.Name,
		"deleted":      true,
	}, nil
}

// objectSchema builds a minimal JSON schema for tool input.
func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}
