package api

import (
	"fmt"
	"math"
	"strings"

	"github.com/cloudchase/chatstream/engine"
)

// ChatRequest is the JSON body for POST {prefix}/chat/stream. Optional
// fields are pointers so an explicit zero is told apart from an absent value.
type ChatRequest struct {
	Message      string   `json:"message"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
	MaxNewTokens *int     `json:"max_new_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	TopP         *float64 `json:"top_p,omitempty"`
}

// ValidationError rejects a request before any generation work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks the message and the range of every supplied parameter.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Reason: "field required"}
	}
	if r.MaxNewTokens != nil && *r.MaxNewTokens < 1 {
		return &ValidationError{Field: "max_new_tokens", Reason: "must be a positive integer"}
	}
	if r.Temperature != nil {
		if t := *r.Temperature; math.IsNaN(t) || t < 0 || t > 2 {
			return &ValidationError{Field: "temperature", Reason: "must be within [0, 2]"}
		}
	}
	if r.TopP != nil {
		if p := *r.TopP; math.IsNaN(p) || p <= 0 || p > 1 {
			return &ValidationError{Field: "top_p", Reason: "must be within (0, 1]"}
		}
	}
	return nil
}

// Overrides returns the caller supplied generation parameters.
func (r ChatRequest) Overrides() engine.Overrides {
	return engine.Overrides{
		MaxNewTokens: r.MaxNewTokens,
		Temperature:  r.Temperature,
		TopP:         r.TopP,
	}
}

func (r ChatRequest) system() string {
	if r.SystemPrompt == nil {
		return ""
	}
	return *r.SystemPrompt
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Generation status values carried in the X-Generation-Status trailer.
const (
	TrailerStatus = "X-Generation-Status"

	StatusComplete  = "complete"
	StatusTruncated = "truncated"
	StatusCancelled = "cancelled"
)
