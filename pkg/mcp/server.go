package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// ToolHandler executes a tool invocation. The returned string becomes the
// textual content of the call result; an error is reported to the caller as
// an isError result rather than tearing down the session.
type ToolHandler func(ctx context.Context, arguments map[string]any) (string, error)

// ServerTool pairs a tool definition with its handler.
type ServerTool struct {
	Definition ToolDefinition
	Handler    ToolHandler
}

// Server is the provider side of the tool channel. It dispatches initialize,
// tools/list, tools/call and shutdown requests read from a framed stream.
// Incoming arguments are validated against the tool's JSON Schema before the
// handler runs, so handlers can rely on the advertised contract.
type Server struct {
	info   ServerInfo
	logger zerolog.Logger

	mu    sync.RWMutex
	tools map[string]ServerTool
	order []string
}

// NewServer constructs a tool provider server with the given identity.
func NewServer(name, version string, logger zerolog.Logger) *Server {
	return &Server{
		info:   ServerInfo{Name: name, Version: version},
		logger: logger,
		tools:  make(map[string]ServerTool),
	}
}

// Register adds a tool to the catalog. Duplicate or empty names return an
// error; registration order is the catalog order.
func (s *Server) Register(tool ServerTool) error {
	name := strings.TrimSpace(tool.Definition.Name)
	if name == "" {
		return errors.New("mcp: tool name is empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("mcp: tool %s has no handler", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[name]; exists {
		return fmt.Errorf("mcp: tool %s already registered", name)
	}
	s.tools[name] = tool
	s.order = append(s.order, name)
	return nil
}

// Definitions returns the registered tool definitions in catalog order.
func (s *Server) Definitions() []ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, s.tools[name].Definition)
	}
	return defs
}

// Serve reads framed requests from r and writes framed responses to w until
// the stream ends, the context is cancelled, or a shutdown request arrives.
// Malformed requests and failed invocations produce error responses; they
// never terminate the loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := readFrame(reader)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mcp: read request: %w", err)
		}

		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.respondError(w, req.ID, -32700, err.Error())
			continue
		}

		s.logger.Debug().Str("method", req.Method).Str("id", req.ID).Msg("request received")

		switch req.Method {
		case "initialize":
			s.respond(w, req.ID, map[string]any{
				"protocolVersion": protocolVersion,
				"serverInfo":      s.info,
				"capabilities": map[string]any{
					"tools": map[string]bool{"list": true, "call": true},
				},
			})
		case "tools/list":
			s.respond(w, req.ID, map[string]any{"tools": s.Definitions()})
		case "tools/call":
			s.respond(w, req.ID, s.handleCall(ctx, req.Params))
		case "shutdown":
			s.respond(w, req.ID, struct{}{})
			return nil
		default:
			s.respondError(w, req.ID, -32601, fmt.Sprintf("method not found: %s", req.Method))
		}
	}
}

func (s *Server) handleCall(ctx context.Context, params any) CallResult {
	raw, err := json.Marshal(params)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid call parameters: %v", err))
	}

	var payload struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errorResult(fmt.Sprintf("invalid call parameters: %v", err))
	}

	s.mu.RLock()
	tool, ok := s.tools[payload.Name]
	s.mu.RUnlock()
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool: %s", payload.Name))
	}

	args := payload.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if err := validateArguments(tool.Definition.InputSchema, args); err != nil {
		s.logger.Warn().Str("tool", payload.Name).Err(err).Msg("rejected invocation")
		return errorResult(err.Error())
	}

	output, err := tool.Handler(ctx, args)
	if err != nil {
		s.logger.Warn().Str("tool", payload.Name).Err(err).Msg("tool failed")
		return errorResult(err.Error())
	}

	s.logger.Info().Str("tool", payload.Name).Msg("tool executed")
	return CallResult{Content: []Content{{Type: "text", Text: output}}}
}

// validateArguments checks the invocation input against the tool's JSON
// Schema. A tool without a schema accepts anything.
func validateArguments(schema json.RawMessage, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("input does not match schema: %s", strings.Join(details, "; "))
	}
	return nil
}

func errorResult(message string) CallResult {
	return CallResult{
		IsError: true,
		Content: []Content{{Type: "text", Text: message}},
	}
}

func (s *Server) respond(w io.Writer, id string, result any) {
	encoded, err := json.Marshal(result)
	if err != nil {
		s.respondError(w, id, -32603, err.Error())
		return
	}
	s.write(w, responseEnvelope{JSONRPC: "2.0", ID: &id, Result: encoded})
}

func (s *Server) respondError(w io.Writer, id string, code int, message string) {
	s.write(w, responseEnvelope{JSONRPC: "2.0", ID: &id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(w io.Writer, env responseEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode response")
		return
	}
	if err := writeFrame(w, payload); err != nil {
		s.logger.Error().Err(err).Msg("write response")
	}
}
