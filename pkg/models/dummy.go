package models

import (
	"context"
	"encoding/json"
)

// DummyOracle is a lightweight oracle useful for local testing without API
// calls. It always elects not to call a tool: the reply is a single text item
// echoing the user message, wrapped in the envelope the negotiation engine
// expects.
type DummyOracle struct{}

func NewDummyOracle() *DummyOracle {
	return &DummyOracle{}
}

func (d *DummyOracle) Complete(_ context.Context, _ string, userMessage string) (string, error) {
	reply, err := json.Marshal(map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": "Dummy response: " + userMessage},
		},
	})
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

var _ Oracle = (*DummyOracle)(nil)
