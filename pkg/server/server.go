// Package server exposes the scenario and browser operations to a
// tool-calling client over a line-delimited JSON-RPC 2.0 stdio transport.
// The wire layer is deliberately thin: handlers delegate to the core
// packages and marshal results.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/browserflow/browserflow/pkg/driver"
	"github.com/browserflow/browserflow/pkg/recording"
	"github.com/browserflow/browserflow/pkg/replay"
	"github.com/browserflow/browserflow/pkg/scenario"
)

// Version is the server version reported to clients.
const Version = "1.0.0"

// Tool describes one callable operation.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// toolHandler executes one tool call. It returns a result payload or a
// structured failure, never both.
type toolHandler func(ctx context.Context, params json.RawMessage) (interface{}, *ToolError)

type registeredTool struct {
	tool    Tool
	handler toolHandler
}

// Server wires the scenario store, recording controller, replay engine,
// and session registry behind the tool surface.
type Server struct {
	store    *scenario.Store
	recorder *recording.Controller
	engine   *replay.Engine
	registry driver.Registry

	dispatcher *replay.Dispatcher

	tools map[string]registeredTool
	order []string

	writeMu sync.Mutex
}

// New creates a server over the given collaborators.
func New(store *scenario.Store, recorder *recording.Controller, engine *replay.Engine, registry driver.Registry) *Server {
	s := &Server{
		store:      store,
		recorder:   recorder,
		engine:     engine,
		registry:   registry,
		dispatcher: replay.NewDispatcher(),
		tools:      make(map[string]registeredTool),
	}

	s.registerScenarioTools()
	s.registerBrowserTools()

	return s
}

// register adds a tool to the surface. Registration order is the order
// tools/list reports.
func (s *Server) register(tool Tool, handler toolHandler) {
	s.tools[tool.Name] = registeredTool{tool: tool, handler: handler}
	s.order = append(s.order, tool.Name)
}

// Run reads line-delimited JSON-RPC requests from r and writes responses
// to w until r is exhausted or the context is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleMessage(ctx, line)
		if resp == nil {
			continue
		}
		if err := s.write(w, resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	return scanner.Err()
}

// write marshals and emits one response. Guarded so concurrent handlers
// never interleave output.
func (s *Server) write(w io.Writer, resp *JSONRPCResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// handleMessage parses and dispatches one request line.
func (s *Server) handleMessage(ctx context.Context, line []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nil, codeParseError, fmt.Sprintf("parse error: %v", err))
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]interface{}{
			"serverInfo": map[string]string{
				"name":    "browserflow",
				"version": Version,
			},
		})

	case "tools/list":
		tools := make([]Tool, 0, len(s.order))
		for _, name := range s.order {
			tools = append(tools, s.tools[name].tool)
		}
		return resultResponse(req.ID, map[string]interface{}{"tools": tools})

	case "tools/call":
		return s.handleToolCall(ctx, &req)

	default:
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleToolCall routes a tools/call request to its handler. Tool failures
// come back as structured results, not protocol errors; only malformed
// requests produce JSON-RPC errors.
func (s *Server) handleToolCall(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return errorResponse(req.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}

	registered, ok := s.tools[call.Name]
	if !ok {
		return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	payload, toolErr := s.callTool(ctx, registered, call.Arguments)
	if toolErr != nil {
		return resultResponse(req.ID, map[string]interface{}{
			"success": false,
			"error":   toolErr,
		})
	}

	return resultResponse(req.ID, map[string]interface{}{
		"success": true,
		"result":  payload,
	})
}

// callTool runs the handler with panic containment: no failure may crash
// the host process.
func (s *Server) callTool(ctx context.Context, registered registeredTool, args json.RawMessage) (payload interface{}, toolErr *ToolError) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: tool %s panicked: %v", registered.tool.Name, r)
			payload = nil
			toolErr = &ToolError{Kind: KindInternal, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	return registered.handler(ctx, args)
}
