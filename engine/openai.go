package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// OpenAIEngine streams completions from an OpenAI-compatible server such as
// vLLM, TGI or the llama.cpp server. The server owns model placement, so the
// device and dtype policies are only reported at load time.
type OpenAIEngine struct {
	client *openai.Client
	info   Info
	log    zerolog.Logger
}

// NewOpenAI connects to opts.BaseURL and checks that opts.ModelID is served.
func NewOpenAI(ctx context.Context, opts LoadOptions) (*OpenAIEngine, error) {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	client := openai.NewClientWithConfig(cfg)

	models, err := client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models at %s: %w", cfg.BaseURL, err)
	}
	found := false
	for _, m := range models.Models {
		if m.ID == opts.ModelID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q is not served by %s", ErrModelNotFound, opts.ModelID, cfg.BaseURL)
	}

	opts.Logger.Debug().
		Str("base_url", cfg.BaseURL).
		Str("offload_folder", opts.OffloadFolder).
		Msg("placement delegated to the inference server")

	return &OpenAIEngine{
		client: client,
		info: Info{
			Backend:    "openai",
			ModelID:    opts.ModelID,
			EOSTokenID: TokenModelDefault,
			PadTokenID: TokenModelDefault,
		},
		log: opts.Logger,
	}, nil
}

// Info implements Engine.
func (e *OpenAIEngine) Info() Info { return e.info }

// GenerateStream implements Engine.
func (e *OpenAIEngine) GenerateStream(ctx context.Context, prompt string, params Params, emit func(string) bool) error {
	stream, err := e.client.CreateCompletionStream(ctx, completionRequest(e.info.ModelID, prompt, params))
	if err != nil {
		return fmt.Errorf("create completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive completion: %w", err)
		}
		for _, choice := range resp.Choices {
			if choice.FinishReason != "" {
				e.log.Debug().Str("finish_reason", choice.FinishReason).Msg("completion finished")
			}
			if choice.Text == "" {
				continue
			}
			if !emit(choice.Text) {
				return nil
			}
		}
	}
}

func completionRequest(model, prompt string, params Params) openai.CompletionRequest {
	// temperature is omitempty on the wire; 0 would fall back to the server default.
	temperature := float32(params.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	return openai.CompletionRequest{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   params.MaxNewTokens,
		Temperature: temperature,
		TopP:        float32(params.TopP),
		Stream:      true,
	}
}
