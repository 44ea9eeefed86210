package celestial

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Raezil/celestial-bridge/pkg/mcp"
)

// Input schemas are runtime data rather than generated types; the channel
// server validates arguments against them before a handler runs.
const (
	listBodiesSchema = `{
  "type": "object",
  "properties": {},
  "additionalProperties": false
}`

	listPhenomenaSchema = `{
  "type": "object",
  "properties": {
    "body": {
      "type": "string",
      "description": "Planetary body name, e.g. 'Sun' or 'Moon'"
    }
  },
  "required": ["body"],
  "additionalProperties": false
}`

	getPhenomenaSchema = `{
  "type": "object",
  "properties": {
    "body": {
      "type": "string",
      "description": "Planetary body name, e.g. 'Sun' or 'Moon'"
    },
    "phenomenon": {
      "type": "string",
      "description": "Phenomenon name, e.g. 'rise-and-set' or 'meridian-transit'"
    },
    "latitude": {
      "type": "string",
      "description": "Observer's latitude in decimal degrees (e.g. '51', '-12.3')"
    },
    "longitude": {
      "type": "string",
      "description": "Observer's longitude in decimal degrees (e.g. '0', '-3.1')"
    },
    "startDate": {
      "type": "string",
      "description": "YYYY-MM-dd start date (e.g. '2024-01-01')"
    },
    "endDate": {
      "type": "string",
      "description": "YYYY-MM-dd end date (e.g. '2024-01-05')"
    },
    "timezone": {
      "type": "string",
      "description": "Optional timezone offset in hours, e.g. '2', '-4'"
    },
    "useBst": {
      "type": "boolean",
      "description": "For UK locations, use BST times where applicable"
    },
    "depression": {
      "type": "integer",
      "description": "Depression value in decimal degrees"
    },
    "altitude": {
      "type": "integer",
      "description": "Altitude value in decimal degrees"
    }
  },
  "required": ["body", "phenomenon", "latitude", "longitude", "startDate", "endDate"],
  "additionalProperties": false
}`

	moonVisibilitySchema = `{
  "type": "object",
  "properties": {
    "latitude": {
      "type": "string",
      "description": "Observer's latitude in decimal degrees"
    },
    "longitude": {
      "type": "string",
      "description": "Observer's longitude in decimal degrees"
    },
    "startDate": {
      "type": "string",
      "description": "YYYY-MM-dd start date"
    },
    "endDate": {
      "type": "string",
      "description": "YYYY-MM-dd end date"
    },
    "timezone": {
      "type": "string",
      "description": "Timezone offset in hours, e.g. '2', '-4'"
    }
  },
  "required": ["latitude", "longitude", "startDate", "endDate", "timezone"],
  "additionalProperties": false
}`
)

// Tools returns the fixed catalog of celestial tools backed by the given
// service client, in catalog order.
func Tools(client *Client) []mcp.ServerTool {
	return []mcp.ServerTool{
		{
			Definition: mcp.ToolDefinition{
				Name:        "list_celestial_bodies",
				Description: "GET /celestial-bodies. Returns a list of available celestial bodies.",
				InputSchema: json.RawMessage(listBodiesSchema),
			},
			Handler: func(ctx context.Context, _ map[string]any) (string, error) {
				return client.Get(ctx, "/celestial-bodies", nil)
			},
		},
		{
			Definition: mcp.ToolDefinition{
				Name:        "list_phenomena",
				Description: "GET /celestial-bodies/{body}/phenomena. Returns the phenomena available for the specified celestial body.",
				InputSchema: json.RawMessage(listPhenomenaSchema),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				body, err := stringArg(args, "body")
				if err != nil {
					return "", err
				}
				endpoint := fmt.Sprintf("/celestial-bodies/%s/phenomena", url.PathEscape(body))
				return client.Get(ctx, endpoint, nil)
			},
		},
		{
			Definition: mcp.ToolDefinition{
				Name:        "get_phenomena",
				Description: "GET /celestial-bodies/{body}/phenomena/{phenomenon}. Retrieves phenomena data for a body and location within a date range.",
				InputSchema: json.RawMessage(getPhenomenaSchema),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				body, err := stringArg(args, "body")
				if err != nil {
					return "", err
				}
				phenomenon, err := stringArg(args, "phenomenon")
				if err != nil {
					return "", err
				}

				params := url.Values{}
				for _, key := range []string{"latitude", "longitude", "startDate", "endDate"} {
					value, err := stringArg(args, key)
					if err != nil {
						return "", err
					}
					params.Set(key, value)
				}

				// Optional parameters are omitted entirely when absent.
				if tz, ok := args["timezone"]; ok {
					params.Set("timezone", fmt.Sprint(tz))
				}
				if useBst, ok := args["useBst"].(bool); ok {
					// The gateway expects the literal strings "true"/"false".
					params.Set("useBst", strconv.FormatBool(useBst))
				}
				if depression, ok := args["depression"]; ok {
					params.Set("depression", intString(depression))
				}
				if altitude, ok := args["altitude"]; ok {
					params.Set("altitude", intString(altitude))
				}

				endpoint := fmt.Sprintf("/celestial-bodies/%s/phenomena/%s", url.PathEscape(body), url.PathEscape(phenomenon))
				return client.Get(ctx, endpoint, params)
			},
		},
		{
			Definition: mcp.ToolDefinition{
				Name:        "moon_visibility",
				Description: "GET /moon-visibility. Returns crescent moon visibility events for a location and date range.",
				InputSchema: json.RawMessage(moonVisibilitySchema),
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				params := url.Values{}
				for _, key := range []string{"latitude", "longitude", "startDate", "endDate", "timezone"} {
					value, err := stringArg(args, key)
					if err != nil {
						return "", err
					}
					params.Set(key, value)
				}
				return client.Get(ctx, "/moon-visibility", params)
			},
		},
	}
}

// NewServer builds a channel server exposing the celestial catalog.
func NewServer(client *Client, version string, logger zerolog.Logger) (*mcp.Server, error) {
	server := mcp.NewServer("celestial-engine", version, logger)
	for _, tool := range Tools(client) {
		if err := server.Register(tool); err != nil {
			return nil, err
		}
	}
	return server, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	value, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

// intString renders an integer argument as its decimal form. JSON numbers
// decode as float64, so both representations are accepted.
func intString(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.Itoa(int(v))
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
