package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raezil/celestial-bridge/pkg/mcp"
)

func sampleCatalog() []mcp.ToolDefinition {
	return []mcp.ToolDefinition{
		{
			Name:        "list_celestial_bodies",
			Description: "Returns a list of available celestial bodies.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
		},
		{
			Name:        "list_phenomena",
			Description: "Returns the phenomena available for a body.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"body":{"type":"string"}},"required":["body"]}`),
		},
	}
}

func TestBuildSystemPromptIsDeterministic(t *testing.T) {
	catalog := sampleCatalog()

	first, err := BuildSystemPrompt(catalog, "when does the sun set in London?")
	require.NoError(t, err)
	second, err := BuildSystemPrompt(catalog, "when does the sun set in London?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildSystemPromptContract(t *testing.T) {
	prompt, err := BuildSystemPrompt(sampleCatalog(), "my question")
	require.NoError(t, err)

	assert.Contains(t, prompt, "The user has asked: my question")
	assert.Contains(t, prompt, `"name": "list_celestial_bodies"`)
	assert.Contains(t, prompt, `"input_schema"`)
	assert.Contains(t, prompt, `"type": "tool_use"`)
	assert.Contains(t, prompt, "No extra keys. Only valid JSON.")
	assert.Contains(t, prompt, `If you do not need a tool, just return one item of type "text".`)
}

func TestCatalogJSONRoundTrip(t *testing.T) {
	catalog := sampleCatalog()

	serialized, err := CatalogJSON(catalog)
	require.NoError(t, err)

	var parsed []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"input_schema"`
	}
	require.NoError(t, json.Unmarshal([]byte(serialized), &parsed))
	require.Len(t, parsed, len(catalog))

	for i, def := range catalog {
		assert.Equal(t, def.Name, parsed[i].Name)
		assert.Equal(t, def.Description, parsed[i].Description)
		assert.JSONEq(t, string(def.InputSchema), string(parsed[i].InputSchema))
	}
}

func TestCatalogJSONEmptyCatalog(t *testing.T) {
	serialized, err := CatalogJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", serialized)
}
