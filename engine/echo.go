package engine

import (
	"context"
	"strings"
	"time"

	"github.com/cloudchase/chatstream/prompt"
)

// EchoEngine streams the user message of the prompt back one word at a time.
// It needs no model and is used for smoke tests of the serving path.
type EchoEngine struct {
	model string
	delay time.Duration
}

// NewEcho returns an echo backend reporting opts.ModelID.
func NewEcho(opts LoadOptions) *EchoEngine {
	return &EchoEngine{model: opts.ModelID, delay: opts.EchoDelay}
}

// Info implements Engine.
func (e *EchoEngine) Info() Info {
	return Info{Backend: "echo", ModelID: e.model, EOSTokenID: 0, PadTokenID: TokenModelDefault}
}

// GenerateStream implements Engine. Each fragment counts as one token
// against params.MaxNewTokens.
func (e *EchoEngine) GenerateStream(ctx context.Context, p string, params Params, emit func(string) bool) error {
	for i, word := range Words(userMessage(p)) {
		if i >= params.MaxNewTokens {
			return nil
		}
		if e.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !emit(word) {
			return nil
		}
	}
	return nil
}

// Words splits s into fragments that concatenate back to s. Whitespace stays
// attached to the word before it; leading whitespace joins the first word.
func Words(s string) []string {
	var out []string
	start := 0
	inSpace := true
	for i, r := range s {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && inSpace && i > start {
			if strings.TrimSpace(s[start:i]) != "" {
				out = append(out, s[start:i])
				start = i
			}
		}
		inSpace = space
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func userMessage(p string) string {
	if i := strings.LastIndex(p, prompt.UserMarker+"\n"); i >= 0 {
		p = p[i+len(prompt.UserMarker)+1:]
	}
	return strings.TrimSuffix(p, "\n\n"+prompt.AssistantMarker)
}
