// Package engine is the boundary to the inference backend that owns the
// model and tokenizer. chatstream never samples or tokenizes itself; it hands
// a formatted prompt and resolved parameters to an Engine and receives text
// fragments through a callback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrUnknownBackend is returned by Load for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown inference backend")
	// ErrModelNotFound is returned when the backend does not serve the model.
	ErrModelNotFound = errors.New("model not found")
)

// TokenModelDefault marks a token id that the backend resolves from its own
// tokenizer and does not expose to callers.
const TokenModelDefault = -1

// Info describes a loaded engine.
type Info struct {
	Backend    string
	ModelID    string
	EOSTokenID int
	PadTokenID int
}

// Engine produces text fragments for a prompt. GenerateStream blocks until
// generation stops and calls emit once per fragment, in order; emit returning
// false asks the engine to stop early. Implementations must be safe for
// concurrent use by independent requests.
type Engine interface {
	Info() Info
	GenerateStream(ctx context.Context, prompt string, params Params, emit func(fragment string) bool) error
}

// LoadOptions selects and configures a backend.
type LoadOptions struct {
	Backend         string
	ModelID         string
	BaseURL         string
	APIKey          string
	TrustRemoteCode bool
	DeviceMap       string
	Precision       string
	OffloadFolder   string

	// HTTPClient overrides the client used by network backends.
	HTTPClient *http.Client
	// EchoDelay paces the echo backend between fragments.
	EchoDelay time.Duration

	Logger zerolog.Logger
}

// Load initializes the backend named by opts.Backend. It fails when the model
// cannot be reached, which callers treat as fatal.
func Load(ctx context.Context, opts LoadOptions) (Engine, error) {
	opts.Logger.Info().
		Str("backend", opts.Backend).
		Str("model", opts.ModelID).
		Str("device_map", opts.DeviceMap).
		Str("dtype", opts.Precision).
		Bool("trust_remote_code", opts.TrustRemoteCode).
		Msg("loading model")

	switch strings.ToLower(opts.Backend) {
	case "openai":
		return NewOpenAI(ctx, opts)
	case "echo":
		return NewEcho(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
