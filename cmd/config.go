package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved settings",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func runConfig(cmd *cobra.Command, _ []string) error {
	s, _, err := setup()
	if err != nil {
		return err
	}

	apiKey := "-"
	if s.BackendAPIKey != "" {
		apiKey = "(set)"
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"APP_NAME", s.AppName},
		{"API_PREFIX", s.APIPrefix},
		{"LISTEN", s.Addr()},
		{"CORS_ORIGINS", strings.Join(s.CORSOrigins, ",")},
		{"HF_MODEL_NAME", s.ModelName},
		{"TRUST_REMOTE_CODE", fmt.Sprint(s.TrustRemoteCode)},
		{"MAX_NEW_TOKENS", fmt.Sprint(s.MaxNewTokens)},
		{"TEMPERATURE", fmt.Sprint(s.Temperature)},
		{"TOP_P", fmt.Sprint(s.TopP)},
		{"DEVICE_MAP", s.DeviceMap},
		{"OFFLOAD_FOLDER", s.OffloadFolder},
		{"TORCH_DTYPE", s.Precision},
		{"INFERENCE_BACKEND", s.Backend},
		{"INFERENCE_BASE_URL", s.BackendURL},
		{"INFERENCE_API_KEY", apiKey},
		{"MAX_CONCURRENT_GENERATIONS", fmt.Sprint(s.MaxConcurrentGenerations)},
		{"METRICS_ADDR", orDash(s.MetricsAddr)},
		{"MODEL_REGISTRY_DIR", orDash(s.RegistryDir)},
		{"LOG_LEVEL", s.LogLevel},
		{"LOG_FORMAT", s.LogFormat},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
	}
	return w.Flush()
}
