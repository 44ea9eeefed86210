// Package bridge implements the negotiation engine: it advertises the tool
// provider's catalog to a completion oracle, parses the oracle's reply into
// text and tool_use items, executes the requested invocations over the tool
// channel, and stitches the results into a single answer.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Raezil/celestial-bridge/pkg/mcp"
	"github.com/Raezil/celestial-bridge/pkg/models"
)

// malformedOutputPrefix precedes the verbatim oracle reply when it cannot be
// parsed as the expected envelope. This is a handled condition, not an error.
const malformedOutputPrefix = "Model did not return valid JSON:\n"

// ToolChannel is the subset of the channel client the engine depends on. The
// channel is passed in explicitly so tests can substitute doubles and callers
// can run isolated sessions.
type ToolChannel interface {
	ListTools(ctx context.Context) ([]mcp.ToolDefinition, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (mcp.CallResult, error)
}

// Bridge runs negotiation cycles against a single shared tool channel. The
// channel serializes its own requests, so one Bridge may serve concurrent
// callers.
type Bridge struct {
	channel ToolChannel
	oracle  models.Oracle
	logger  zerolog.Logger
}

// New constructs a Bridge. Both collaborators are required.
func New(channel ToolChannel, oracle models.Oracle, logger zerolog.Logger) (*Bridge, error) {
	if channel == nil {
		return nil, errors.New("bridge: tool channel is required")
	}
	if oracle == nil {
		return nil, errors.New("bridge: completion oracle is required")
	}
	return &Bridge{channel: channel, oracle: oracle, logger: logger}, nil
}

// contentItem is one unit of a parsed oracle reply. Raw is kept for rendering
// items whose type is not recognised.
type contentItem struct {
	Type  string         `json:"type"`
	Text  string         `json:"text"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ProcessQuery runs one full negotiation cycle: fetch the catalog, build the
// prompt, complete, interpret the reply, and execute any tool invocations in
// order. Per-item failures become inline text; only a catalog fetch or
// oracle failure aborts the cycle.
func (b *Bridge) ProcessQuery(ctx context.Context, query string) (string, error) {
	catalog, err := b.channel.ListTools(ctx)
	if err != nil {
		return "", fmt.Errorf("bridge: list tools: %w", err)
	}

	systemPrompt, err := BuildSystemPrompt(catalog, query)
	if err != nil {
		return "", fmt.Errorf("bridge: %w", err)
	}

	reply, err := b.oracle.Complete(ctx, systemPrompt, query)
	if err != nil {
		return "", fmt.Errorf("bridge: completion failed: %w", err)
	}

	return b.interpret(ctx, strings.TrimSpace(reply)), nil
}

// interpret converts the raw oracle reply into the final answer. The reply is
// expected to be a {"content": [...]} envelope; anything else degrades to the
// verbatim fallback rather than an error.
func (b *Bridge) interpret(ctx context.Context, reply string) string {
	var envelope struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal([]byte(reply), &envelope); err != nil {
		b.logger.Debug().Err(err).Msg("oracle reply is not a valid envelope")
		return malformedOutputPrefix + reply
	}

	chunks := make([]string, 0, len(envelope.Content))
	for _, raw := range envelope.Content {
		var item contentItem
		if err := json.Unmarshal(raw, &item); err != nil {
			chunks = append(chunks, fmt.Sprintf("Unrecognized item: %s", compactJSON(raw)))
			continue
		}

		switch item.Type {
		case "text":
			chunks = append(chunks, item.Text)
		case "tool_use":
			chunks = append(chunks, b.invoke(ctx, item))
		default:
			chunks = append(chunks, fmt.Sprintf("Unrecognized item: %s", compactJSON(raw)))
		}
	}

	return strings.Join(chunks, "\n")
}

// invoke executes a single tool_use item. Failures are captured as data so
// sibling items in the same reply still run.
func (b *Bridge) invoke(ctx context.Context, item contentItem) string {
	input := item.Input
	if input == nil {
		input = map[string]any{}
	}

	b.logger.Info().Str("tool", item.Name).Interface("input", input).Msg("executing tool")

	result, err := b.channel.CallTool(ctx, item.Name, input)
	if err != nil {
		return fmt.Sprintf("[Error executing tool '%s': %s]", item.Name, err.Error())
	}
	return fmt.Sprintf("[Tool '%s' executed with result: %s]", item.Name, result.PrimaryText())
}

// Prettify runs the presentation pass: one more completion that reformats the
// raw answer into a human-readable string or table. The oracle's reply is
// returned unmodified and an oracle failure propagates to the caller.
func (b *Bridge) Prettify(ctx context.Context, text string) (string, error) {
	reply, err := b.oracle.Complete(ctx, buildPresentationPrompt(text), text)
	if err != nil {
		return "", fmt.Errorf("bridge: presentation pass failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
