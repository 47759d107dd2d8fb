package anthropic

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ErrNoToolCall is returned when the model answers without calling the
// forced tool.
var ErrNoToolCall = eris.New("anthropic: response has no tool call")

// Schema describes the structured output expected from Complete.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// CompletionRequest is the input to Complete.
type CompletionRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Prompt      string
	Temperature float64
	// Phase labels cost logging.
	Phase string
}

// Complete asks the model for one instance of schema and decodes it into
// out. The schema is exposed as the only tool and the model is forced to
// call it, so the answer always arrives as schema-shaped JSON.
func Complete(ctx context.Context, client Client, req CompletionRequest, schema Schema, out any) error {
	if req.MaxTokens == 0 {
		req.MaxTokens = 1024
	}
	temperature := req.Temperature

	msgReq := MessageRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temperature,
		Tools: []Tool{{
			Name:        schema.Name,
			Description: schema.Description,
			Properties:  schema.Properties,
			Required:    schema.Required,
		}},
		ToolChoice: schema.Name,
	}
	if req.System != "" {
		msgReq.System = []SystemBlock{{Text: req.System}}
	}

	resp, err := client.CreateMessage(ctx, msgReq)
	if err != nil {
		return err
	}
	resp.Usage.LogCost(req.Model, req.Phase)

	for _, block := range resp.Content {
		if block.Type != "tool_use" || block.Name != schema.Name {
			continue
		}
		if err := json.Unmarshal(block.Input, out); err != nil {
			return eris.Wrapf(err, "anthropic: decode %s output", schema.Name)
		}
		return nil
	}
	return ErrNoToolCall
}
