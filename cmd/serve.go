package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudchase/chatstream/api"
	"github.com/cloudchase/chatstream/metrics"
	"github.com/cloudchase/chatstream/stream"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Load the model once and serve POST {API_PREFIX}/chat/stream until interrupted.
Startup fails if the model cannot be loaded.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := loadEngine(ctx, settings, log)
	if err != nil {
		return err
	}
	log.Info().Str("backend", eng.Info().Backend).Str("model", eng.Info().ModelID).Msg("model ready")

	if settings.MetricsAddr != "" {
		ms := metrics.NewServer(settings.MetricsAddr)
		go func() {
			log.Info().Str("addr", settings.MetricsAddr).Msg("starting metrics server")
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Shutdown(sctx)
		}()
	}

	bridge := stream.NewBridge(eng, settings.MaxConcurrentGenerations, log)
	srv := api.NewServer(settings, bridge, log)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
