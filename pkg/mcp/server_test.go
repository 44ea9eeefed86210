package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testSchema = `{
  "type": "object",
  "properties": {
    "body": {"type": "string"}
  },
  "required": ["body"],
  "additionalProperties": false
}`

func newEchoServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer("celestial-engine", "test", zerolog.Nop())
	err := server.Register(ServerTool{
		Definition: ToolDefinition{
			Name:        "list_phenomena",
			Description: "Returns the phenomena for a body.",
			InputSchema: json.RawMessage(testSchema),
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			body, _ := args["body"].(string)
			if body == "Pluto" {
				return "", errors.New("body not supported")
			}
			return fmt.Sprintf("phenomena for %s", body), nil
		},
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	return server
}

// startServer wires a real Server and a real Client through in-process pipes.
func startServer(t *testing.T, ctx context.Context, server *Server) *Client {
	t.Helper()

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	go func() {
		_ = server.Serve(ctx, bufio.NewReader(serverRead), serverWrite)
	}()

	transport := &streamTransport{
		reader:      bufio.NewReader(clientRead),
		writer:      clientWrite,
		writeCloser: clientWrite,
		readCloser:  clientRead,
	}

	client, err := NewClient(ctx, transport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestServerHandshakeAndList(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := startServer(t, ctx, newEchoServer(t))

	if got := client.Server().Name; got != "celestial-engine" {
		t.Fatalf("unexpected server name: %s", got)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "list_phenomena" {
		t.Fatalf("unexpected tools: %#v", tools)
	}
	if len(tools[0].InputSchema) == 0 {
		t.Fatal("expected input schema to survive the round trip")
	}
}

func TestServerCallTool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := startServer(t, ctx, newEchoServer(t))

	result, err := client.CallTool(ctx, "list_phenomena", map[string]any{"body": "Moon"})
	if err != nil {
		t.Fatalf("CallTool error: %v", err)
	}
	if got := result.Text(); got != "phenomena for Moon" {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestServerRejectsUnknownTool(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := startServer(t, ctx, newEchoServer(t))

	_, err := client.CallTool(ctx, "no_such_tool", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}

func TestServerValidatesInputSchema(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := startServer(t, ctx, newEchoServer(t))

	// Missing required "body".
	_, err := client.CallTool(ctx, "list_phenomena", map[string]any{"planet": "Moon"})
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema validation error, got %v", err)
	}

	// Wrong type for "body".
	_, err = client.CallTool(ctx, "list_phenomena", map[string]any{"body": 42})
	if err == nil || !strings.Contains(err.Error(), "schema") {
		t.Fatalf("expected schema validation error, got %v", err)
	}
}

func TestServerHandlerErrorBecomesCallFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := startServer(t, ctx, newEchoServer(t))

	_, err := client.CallTool(ctx, "list_phenomena", map[string]any{"body": "Pluto"})
	if err == nil || !strings.Contains(err.Error(), "body not supported") {
		t.Fatalf("expected handler error, got %v", err)
	}

	// The session is still usable after a failed invocation.
	result, err := client.CallTool(ctx, "list_phenomena", map[string]any{"body": "Sun"})
	if err != nil {
		t.Fatalf("CallTool after failure: %v", err)
	}
	if got := result.Text(); got != "phenomena for Sun" {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestServerShutdownEndsLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := newEchoServer(t)

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, bufio.NewReader(serverRead), serverWrite)
	}()

	transport := &streamTransport{
		reader:      bufio.NewReader(clientRead),
		writer:      clientWrite,
		writeCloser: clientWrite,
		readCloser:  clientRead,
	}
	client, err := NewClient(ctx, transport, Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	if err := client.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server loop did not stop after shutdown")
	}
}

func TestValidateCommand(t *testing.T) {
	cases := []struct {
		command string
		wantErr bool
	}{
		{"", true},
		{"   ", true},
		{"engine.py", true},
		{"./provider.go", true},
		{"server.ts", true},
		{"/usr/local/bin/celestial-bridge", false},
		{"python3", false},
	}

	for _, tc := range cases {
		err := ValidateCommand(tc.command)
		if tc.wantErr {
			if !errors.Is(err, ErrUnsupportedServerCommand) {
				t.Fatalf("ValidateCommand(%q) = %v, want ErrUnsupportedServerCommand", tc.command, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ValidateCommand(%q) unexpected error: %v", tc.command, err)
		}
	}
}
