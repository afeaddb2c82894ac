package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/browserflow/browserflow/pkg/scenario"
)

// registerBrowserTools adds session management plus the recordable browser
// actions. Each action tool shares one handler shape: build a step from the
// arguments, dispatch it against the target session, and append it to any
// recording active on that session.
func (s *Server) registerBrowserTools() {
	s.register(Tool{
		Name:        "create_session",
		Description: "Open a new browser session",
		InputSchema: objectSchema(map[string]interface{}{}),
	}, s.handleCreateSession)

	s.register(Tool{
		Name:        "close_session",
		Description: "Close a browser session",
		InputSchema: objectSchema(map[string]interface{}{
			"sessionId": stringProp("Session to close"),
		}, "sessionId"),
	}, s.handleCloseSession)

	s.register(Tool{
		Name:        "list_sessions",
		Description: "List live browser sessions",
		InputSchema: objectSchema(map[string]interface{}{}),
	}, s.handleListSessions)

	s.registerAction(scenario.ActionNavigate, "Navigate the session to a URL",
		map[string]interface{}{
			"url": stringProp("Destination URL"),
		}, "url")

	s.registerAction(scenario.ActionClick, "Click an element",
		map[string]interface{}{
			"selector": stringProp("Element selector"),
			"by":       stringProp("Selector strategy: css, xpath, id, name (default css)"),
		}, "selector")

	s.registerAction(scenario.ActionType, "Type text into an element",
		map[string]interface{}{
			"selector": stringProp("Element selector"),
			"by":       stringProp("Selector strategy (default css)"),
			"text":     stringProp("Text to type"),
		}, "selector", "text")

	s.registerAction(scenario.ActionExecuteScript, "Execute JavaScript in the page",
		map[string]interface{}{
			"script": stringProp("JavaScript source"),
			"args":   map[string]interface{}{"type": "array", "description": "Script arguments"},
		}, "script")

	s.registerAction(scenario.ActionScreenshot, "Capture a screenshot of the page",
		map[string]interface{}{})

	s.registerAction(scenario.ActionFillForm, "Fill multiple form fields, optionally submitting",
		map[string]interface{}{
			"fields": map[string]interface{}{"type": "object", "description": "Field name to {selector, value}"},
			"submit": stringProp("Selector to click after filling"),
		}, "fields")

	s.registerAction(scenario.ActionSelectOption, "Select an option in a dropdown",
		map[string]interface{}{
			"selector": stringProp("Select element selector"),
			"by":       stringProp("Selector strategy (default css)"),
			"option":   map[string]interface{}{"type": "object", "description": "Option choice: {by: text|value|index, ...}"},
		}, "selector", "option")

	s.registerAction(scenario.ActionWaitForPageChange, "Wait until the page URL changes or matches a pattern",
		map[string]interface{}{
			"pattern": stringProp("Regular expression the URL must match; empty means any change"),
			"timeout": map[string]interface{}{"type": "integer", "description": "Timeout in milliseconds (default 10000)"},
		})
}

// registerAction wires one recordable browser action as a tool. The tool
// name is the action name; sessionId is always required on top of the
// action's own arguments.
func (s *Server) registerAction(action scenario.Action, description string, properties map[string]interface{}, required ...string) {
	properties["sessionId"] = stringProp("Session to act on")
	required = append([]string{"sessionId"}, required...)

	s.register(Tool{
		Name:        string(action),
		Description: description,
		InputSchema: objectSchema(properties, required...),
	}, s.actionHandler(action))
}

// actionHandler builds the shared handler for one browser action.
func (s *Server) actionHandler(action scenario.Action) toolHandler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, *ToolError) {
		var args struct {
			SessionID string `json:"sessionId"`
			scenario.Step
		}
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
		}
		if args.SessionID == "" {
			return nil, validationError("sessionId is required")
		}

		step := args.Step
		step.Action = action
		if err := step.Validate(); err != nil {
			return nil, validationError(err.Error())
		}

		sess, ok := s.registry.Get(args.SessionID)
		if !ok {
			return nil, notFoundError(fmt.Sprintf("session not found: %s", args.SessionID))
		}

		result := s.dispatcher.Dispatch(ctx, sess.Driver(), &step)
		if !result.Success {
			return nil, &ToolError{Kind: KindStepFailed, Message: result.Message}
		}

		// Only actions that actually happened end up in the recording.
		step.Timestamp = time.Now().UnixMilli()
		s.recorder.Record(args.SessionID, &step)

		payload := map[string]interface{}{"message": result.Message}
		if result.Value != nil {
			payload["value"] = result.Value
		}
		return payload, nil
	}
}

func (s *Server) handleCreateSession(ctx context.Context, _ json.RawMessage) (interface{}, *ToolError) {
	sess, err := s.registry.Create(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create session: %w", err))
	}

	return map[string]interface{}{"sessionId": sess.ID()}, nil
}

func (s *Server) handleCloseSession(_ context.Context, params json.RawMessage) (interface{}, *ToolError) {
	var args struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, validationError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.SessionID == "" {
		return nil, validationError("sessionId is required")
	}

	if err := s.registry.Close(args.SessionID); err != nil {
		return nil, classify(err)
	}

	return map[string]interface{}{"sessionId": args.SessionID, "closed": true}, nil
}

func (s *Server) handleListSessions(_ context.Context, _ json.RawMessage) (interface{}, *ToolError) {
	sessions := s.registry.List()
	return map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}, nil
}
