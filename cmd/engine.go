package cmd

import (
	"context"
	"fmt"

	"github.com/cloudchase/chatstream/config"
	"github.com/cloudchase/chatstream/engine"
	"github.com/rs/zerolog"
)

// loadEngine resolves the configured model through the registry and loads it.
// A registry alias may override the backend and base URL.
func loadEngine(ctx context.Context, settings *config.Settings, log zerolog.Logger) (engine.Engine, error) {
	mgr, err := openRegistry(settings)
	if err != nil {
		return nil, err
	}
	res, err := mgr.ResolveModel(settings.ModelName)
	if err != nil {
		return nil, fmt.Errorf("resolve model %s: %w", settings.ModelName, err)
	}

	opts := engine.LoadOptions{
		Backend:         settings.Backend,
		ModelID:         res.ModelID,
		BaseURL:         settings.BackendURL,
		APIKey:          settings.BackendAPIKey,
		TrustRemoteCode: settings.TrustRemoteCode,
		DeviceMap:       settings.DeviceMap,
		Precision:       settings.Precision,
		OffloadFolder:   settings.OffloadFolder,
		Logger:          log,
	}
	if res.Backend != "" {
		opts.Backend = res.Backend
	}
	if res.BaseURL != "" {
		opts.BaseURL = res.BaseURL
	}
	if res.Alias != "" {
		log.Info().Str("alias", res.Alias).Str("model", res.ModelID).Msg("resolved model alias")
	}

	eng, err := engine.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", res.ModelID, err)
	}
	return eng, nil
}
