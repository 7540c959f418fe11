package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const extractSystemPrompt = `You extract knowledge triples from notes about a software project.
Respond with a JSON array of objects with keys "source", "relation" and "target".
Relations are short snake_case verbs such as "depends_on", "uses", "causes" or "preferred_over".
Respond with [] when the note contains no extractable facts. Output only JSON.`

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// LLM extracts triples by asking a Claude model to structure the content.
type LLM struct {
	client anthropic.Client
	model  string
}

// NewLLM builds an extractor backed by the Anthropic API. An empty apiKey
// defers to the SDK's environment-based configuration; an empty model
// selects DefaultModel.
func NewLLM(apiKey, model string) *LLM {
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient()
	if apiKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(apiKey))
	}
	return &LLM{client: client, model: model}
}

func (l *LLM) Extract(ctx context.Context, content string) ([]Triple, error) {
	msg, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: extractSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request: %w", err)
	}

	var raw strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}
	return parseTriples(raw.String())
}

// parseTriples decodes the model response, tolerating prose around the
// JSON array.
func parseTriples(raw string) ([]Triple, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in extraction response")
	}

	var decoded []Triple
	if err := json.Unmarshal([]byte(raw[start:end+1]), &decoded); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	triples := decoded[:0]
	for _, t := range decoded {
		t.Source = strings.TrimSpace(t.Source)
		t.Relation = strings.TrimSpace(t.Relation)
		t.Target = strings.TrimSpace(t.Target)
		if t.Source == "" || t.Relation == "" || t.Target == "" {
			continue
		}
		triples = append(triples, t)
	}
	return triples, nil
}
