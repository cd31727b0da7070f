// Package llm defines the provider-neutral types exchanged with the language model.
package llm

import "fmt"

// Mode selects the reasoning tier of a generation call.
type Mode string

// Generation modes.
const (
	ModeLow  Mode = "low"
	ModeHigh Mode = "high"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLow, ModeHigh:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown generation mode %q", s)
	}
}

// Generation is the text produced by one model call and its token usage.
type Generation struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Tokens returns the total usage, summing parts when the provider omits the total.
func (g Generation) Tokens() int {
	if g.TotalTokens > 0 {
		return g.TotalTokens
	}
	return g.PromptTokens + g.CompletionTokens
}

// Type is a JSON schema primitive type.
type Type string

// Schema types.
const (
	TypeObject  Type = "object"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeArray   Type = "array"
)

// Property describes one schema property.
type Property struct {
	Type        Type                `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// Schema is a named object schema for structured extraction.
type Schema struct {
	Name        string
	Description string
	Root        Property
}
