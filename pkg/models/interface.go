// Package models provides the completion oracle: a stateless, single-shot
// text completion used by the negotiation engine. Every call is independent;
// there is no streaming and no multi-turn history.
package models

import (
	"context"
)

// Oracle performs one chat completion from a system prompt and a user
// message. A transport or auth failure is fatal to the calling query cycle.
type Oracle interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
