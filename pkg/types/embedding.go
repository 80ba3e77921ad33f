package types //nolint:revive // package name is intentional

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EmbeddingInput is the input of an embedding request: either a single
// string or an array of strings. Token-id inputs are not accepted because
// they cannot be cached by text.
type EmbeddingInput struct {
	// Text is a single string input.
	Text *string `json:"-"`
	// Texts is an array of string inputs.
	Texts []string `json:"-"`
}

// UnmarshalJSON infers the input shape: string, then []string.
func (e *EmbeddingInput) UnmarshalJSON(data []byte) error {
	e.Text = nil
	e.Texts = nil

	if string(data) == "null" {
		return fmt.Errorf("input cannot be null")
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Text = &s
		return nil
	}

	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		e.Texts = ss
		return nil
	}

	return fmt.Errorf("input must be a string or an array of strings")
}

// MarshalJSON writes back whichever shape was set.
func (e EmbeddingInput) MarshalJSON() ([]byte, error) {
	switch {
	case e.Text != nil && e.Texts != nil:
		return nil, fmt.Errorf("embedding input must set exactly one field")
	case e.Text != nil:
		return json.Marshal(*e.Text)
	case e.Texts != nil:
		return json.Marshal(e.Texts)
	default:
		return nil, fmt.Errorf("embedding input is empty")
	}
}

// Validate checks the input is non-empty.
func (e *EmbeddingInput) Validate() error {
	if e.Text != nil {
		if *e.Text == "" {
			return fmt.Errorf("input string cannot be empty")
		}
		return nil
	}
	if e.Texts != nil {
		if len(e.Texts) == 0 {
			return fmt.Errorf("input array cannot be empty")
		}
		for i, s := range e.Texts {
			if s == "" {
				return fmt.Errorf("input array contains empty string at index %d", i)
			}
		}
		return nil
	}
	return fmt.Errorf("input cannot be nil")
}

// Values returns the inputs as a slice, in request order.
func (e *EmbeddingInput) Values() []string {
	if e.Text != nil {
		return []string{*e.Text}
	}
	return e.Texts
}

// NewEmbeddingInputFromString creates an EmbeddingInput from a single string.
func NewEmbeddingInputFromString(s string) *EmbeddingInput {
	return &EmbeddingInput{Text: &s}
}

// NewEmbeddingInputFromStrings creates an EmbeddingInput from a string slice.
func NewEmbeddingInputFromStrings(ss []string) *EmbeddingInput {
	return &EmbeddingInput{Texts: ss}
}

// EmbeddingRequest represents an OpenAI-compatible embedding request.
type EmbeddingRequest struct {
	Model string          `json:"model"`
	Input *EmbeddingInput `json:"input"`

	// EncodingFormat must be "float" or empty; base64 output cannot be cached
	// as vectors.
	EncodingFormat string `json:"encoding_format,omitempty"`
	User           string `json:"user,omitempty"`
	Dimensions     int    `json:"dimensions,omitempty"`
}

// Validate checks if the embedding request is valid.
func (r *EmbeddingRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if r.EncodingFormat != "" && r.EncodingFormat != "float" {
		return fmt.Errorf("encoding_format %q is not supported", r.EncodingFormat)
	}
	if r.Input == nil {
		return fmt.Errorf("input cannot be nil")
	}
	return r.Input.Validate()
}

// EmbeddingResponse represents an OpenAI-compatible embedding response.
type EmbeddingResponse struct {
	Object string            `json:"object"`
	Data   []EmbeddingObject `json:"data"`
	Model  string            `json:"model"`
	Usage  Usage             `json:"usage"`
}

// EmbeddingObject represents a single embedding object.
type EmbeddingObject struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}
