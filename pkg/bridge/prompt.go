package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/Raezil/celestial-bridge/pkg/mcp"
)

// negotiationPromptTemplate prescribes the exact output contract: a JSON
// object with a single "content" array of text and tool_use items. The
// contract is best effort, which is why response parsing has a first-class
// fallback path.
const negotiationPromptTemplate = `You are a helpful assistant with the ability to call tools.
The user has asked: %s

Here are the available tools (name, description, input_schema):
%s

Respond with valid JSON of the form:
{
  "content": [
    {
      "type": "text",
      "text": "any reply text"
    },
    {
      "type": "tool_use",
      "name": "some_tool_name",
      "input": { ... }
    }
  ]
}

No extra keys. Only valid JSON. The "input" object must match the tool's input schema if you call a tool.
If you do not need a tool, just return one item of type "text".`

const presentationPromptTemplate = `You are a helpful assistant that will receive JSON and format the output into a nice human readable string or table based on the json received.
The user has asked: %s
Return the output as a nice string or table result.`

// catalogEntry is the prompt-embedded projection of a tool definition.
type catalogEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// CatalogJSON serializes the catalog as a pretty-printed array of
// {name, description, input_schema} objects. The output is deterministic for
// identical catalogs.
func CatalogJSON(catalog []mcp.ToolDefinition) (string, error) {
	entries := make([]catalogEntry, 0, len(catalog))
	for _, def := range catalog {
		entries = append(entries, catalogEntry{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}

	serialized, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize tool catalog: %w", err)
	}
	return string(serialized), nil
}

// BuildSystemPrompt embeds the serialized catalog and the query into the
// negotiation instruction template.
func BuildSystemPrompt(catalog []mcp.ToolDefinition, query string) (string, error) {
	serialized, err := CatalogJSON(catalog)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(negotiationPromptTemplate, query, serialized), nil
}

// buildPresentationPrompt wraps raw bridge output in the reformatting
// instruction used by the presentation pass.
func buildPresentationPrompt(text string) string {
	return fmt.Sprintf(presentationPromptTemplate, text)
}
