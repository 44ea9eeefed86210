package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClientListAndCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientTransport, server := newInMemoryPair()

	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]string{
				"name":    "celestial-engine",
				"version": "1.0.0",
			},
		}, nil
	})
	server.handle("tools/list", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"tools": []ToolDefinition{{
				Name:        "list_celestial_bodies",
				Description: "Returns a list of available celestial bodies.",
			}},
		}, nil
	})
	server.handle("tools/call", func(id string, params json.RawMessage) (any, *rpcError) {
		var payload struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal(params, &payload); err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		if payload.Name != "list_phenomena" {
			return nil, &rpcError{Code: -32001, Message: "unknown tool"}
		}
		body, _ := payload.Arguments["body"].(string)
		return CallResult{
			Content: []Content{{Type: "text", Text: fmt.Sprintf("phenomena:%s", body)}},
		}, nil
	})

	go server.serve(ctx)

	client, err := NewClient(ctx, clientTransport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	if got := client.Server().Name; got != "celestial-engine" {
		t.Fatalf("unexpected server name: %s", got)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "list_celestial_bodies" {
		t.Fatalf("unexpected tools: %#v", tools)
	}

	result, err := client.CallTool(ctx, "list_phenomena", map[string]any{"body": "Moon"})
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if got := result.Text(); got != "phenomena:Moon" {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestClientListToolsFollowsCursor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientTransport, server := newInMemoryPair()

	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "mock", "version": "1"},
		}, nil
	})
	server.handle("tools/list", func(id string, params json.RawMessage) (any, *rpcError) {
		var payload struct {
			Cursor string `json:"cursor"`
		}
		_ = json.Unmarshal(params, &payload)
		if payload.Cursor == "" {
			return map[string]any{
				"tools":      []ToolDefinition{{Name: "list_celestial_bodies"}},
				"nextCursor": "page-2",
			}, nil
		}
		return map[string]any{
			"tools": []ToolDefinition{{Name: "moon_visibility"}},
		}, nil
	})

	go server.serve(ctx)

	client, err := NewClient(ctx, clientTransport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "list_celestial_bodies" || tools[1].Name != "moon_visibility" {
		t.Fatalf("unexpected tools: %#v", tools)
	}
}

func TestClientCallToolError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientTransport, server := newInMemoryPair()

	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]string{"name": "mock", "version": "1"},
		}, nil
	})
	server.handle("tools/call", func(id string, params json.RawMessage) (any, *rpcError) {
		return CallResult{
			IsError: true,
			Content: []Content{{Type: "text", Text: "upstream returned 404"}},
		}, nil
	})

	go server.serve(ctx)

	client, err := NewClient(ctx, clientTransport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	_, err = client.CallTool(ctx, "get_phenomena", map[string]any{"body": "Mars"})
	if err == nil || !strings.Contains(err.Error(), "upstream returned 404") {
		t.Fatalf("expected failure error, got %v", err)
	}
}

func TestClientHandshakeFailureClosesTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientTransport, server := newInMemoryPair()

	server.handle("initialize", func(id string, params json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "handshake refused"}
	})

	go server.serve(ctx)

	if _, err := NewClient(ctx, clientTransport, Options{}); err == nil {
		t.Fatal("expected handshake error")
	}
}

// ----------------------------------------------------------------------------
// Helpers

type inMemoryServer struct {
	reader   *bufio.Reader
	writer   io.Writer
	handlers map[string]func(id string, params json.RawMessage) (any, *rpcError)
	mu       sync.RWMutex
}

func newInMemoryPair() (Transport, *inMemoryServer) {
	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	transport := &streamTransport{
		reader:      bufio.NewReader(clientRead),
		writer:      clientWrite,
		writeCloser: clientWrite,
		readCloser:  clientRead,
	}

	server := &inMemoryServer{
		reader:   bufio.NewReader(serverRead),
		writer:   serverWrite,
		handlers: make(map[string]func(id string, params json.RawMessage) (any, *rpcError)),
	}

	return transport, server
}

func (s *inMemoryServer) handle(method string, fn func(id string, params json.RawMessage) (any, *rpcError)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

func (s *inMemoryServer) serve(ctx context.Context) {
	for {
		payload, err := readFrame(s.reader)
		if err != nil {
			return
		}

		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			s.reply(responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: &rpcError{Code: -32700, Message: err.Error()}})
			continue
		}

		s.mu.RLock()
		handler := s.handlers[req.Method]
		s.mu.RUnlock()

		if handler == nil {
			s.reply(responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: &rpcError{Code: -32601, Message: "method not found"}})
			continue
		}

		result, rpcErr := handler(req.ID, mustRaw(req.Params))
		if rpcErr != nil {
			s.reply(responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: rpcErr})
			continue
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			s.reply(responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Error: &rpcError{Code: -32603, Message: err.Error()}})
			continue
		}

		s.reply(responseEnvelope{JSONRPC: "2.0", ID: &req.ID, Result: encoded})
	}
}

func (s *inMemoryServer) reply(env responseEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	_ = writeFrame(s.writer, payload)
}

func mustRaw(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, _ := json.Marshal(v)
	return data
}
