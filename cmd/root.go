package cmd

import (
	"fmt"

	"github.com/cloudchase/chatstream/config"
	"github.com/cloudchase/chatstream/logger"
	"github.com/cloudchase/chatstream/registry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "chatstream",
	Short:         "chatstream - streaming chat completions over HTTP",
	Long:          "Serve a single text generation model behind a streaming HTTP endpoint, or drive it from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default $ENV_FILE or .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads settings and builds the process logger.
func setup() (*config.Settings, zerolog.Logger, error) {
	settings, err := config.Load(envFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load settings: %w", err)
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	return settings, logger.Setup(settings.LogLevel, settings.LogFormat), nil
}

func openRegistry(settings *config.Settings) (*registry.ModelManager, error) {
	dir := settings.RegistryDir
	if dir == "" {
		dir = registry.DefaultBaseDir()
	}
	mgr, err := registry.NewModelManager(dir)
	if err != nil {
		return nil, fmt.Errorf("init model registry: %w", err)
	}
	return mgr, nil
}
