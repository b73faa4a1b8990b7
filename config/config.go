// Package config loads the process-wide settings for chatstream.
//
// Settings are read once at startup from the environment (optionally seeded
// from a dotenv file) and are never mutated afterwards. Components receive a
// *Settings by reference instead of reaching for a global.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Settings holds every tunable the service reads at startup.
type Settings struct {
	AppName     string   `env:"APP_NAME" envDefault:"local-chatbot"`
	APIPrefix   string   `env:"API_PREFIX" envDefault:"/api"`
	Host        string   `env:"HOST" envDefault:"0.0.0.0"`
	Port        int      `env:"PORT" envDefault:"8000"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:8000,http://127.0.0.1:8000,http://localhost:5173,http://127.0.0.1:5500"`

	ModelName       string  `env:"HF_MODEL_NAME" envDefault:"databricks/dolly-v2-3b"`
	TrustRemoteCode bool    `env:"TRUST_REMOTE_CODE" envDefault:"false"`
	MaxNewTokens    int     `env:"MAX_NEW_TOKENS" envDefault:"512"`
	Temperature     float64 `env:"TEMPERATURE" envDefault:"0.7"`
	TopP            float64 `env:"TOP_P" envDefault:"0.95"`

	DeviceMap     string `env:"DEVICE_MAP" envDefault:"auto"`
	OffloadFolder string `env:"OFFLOAD_FOLDER" envDefault:"./offload"`
	Precision     string `env:"TORCH_DTYPE" envDefault:"auto"`

	Backend       string `env:"INFERENCE_BACKEND" envDefault:"openai"`
	BackendURL    string `env:"INFERENCE_BASE_URL" envDefault:"http://localhost:8080/v1"`
	BackendAPIKey string `env:"INFERENCE_API_KEY"`

	MaxConcurrentGenerations int `env:"MAX_CONCURRENT_GENERATIONS" envDefault:"0"`

	MetricsAddr string `env:"METRICS_ADDR"`
	RegistryDir string `env:"MODEL_REGISTRY_DIR"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// DefaultEnvFile is used when ENV_FILE is unset and no file is given explicitly.
const DefaultEnvFile = ".env"

var (
	deviceMaps = []string{"auto", "cpu", "cuda", "mps"}
	precisions = []string{"auto", "float16", "bfloat16", "float32"}
	backends   = []string{"openai", "echo"}
)

// Load reads envFile (or $ENV_FILE, or .env) into the process environment
// when it exists, then parses and validates the settings. Variables already
// present in the environment take precedence over the file.
func Load(envFile string) (*Settings, error) {
	if envFile == "" {
		envFile = os.Getenv("ENV_FILE")
	}
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", envFile, err)
	}

	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	s.APIPrefix = strings.TrimRight(s.APIPrefix, "/")
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports the first setting that cannot be served.
func (s *Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d (must be 1-65535)", s.Port)
	}
	if s.APIPrefix != "" && !strings.HasPrefix(s.APIPrefix, "/") {
		return fmt.Errorf("invalid API_PREFIX: %q (must start with /)", s.APIPrefix)
	}
	if strings.TrimSpace(s.ModelName) == "" {
		return errors.New("HF_MODEL_NAME is required")
	}
	if s.MaxNewTokens < 1 {
		return fmt.Errorf("invalid MAX_NEW_TOKENS: %d (must be positive)", s.MaxNewTokens)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("invalid TEMPERATURE: %g (must be within [0, 2])", s.Temperature)
	}
	if s.TopP <= 0 || s.TopP > 1 {
		return fmt.Errorf("invalid TOP_P: %g (must be within (0, 1])", s.TopP)
	}
	if !oneOf(s.DeviceMap, deviceMaps) {
		return fmt.Errorf("invalid DEVICE_MAP: %q (expected one of %s)", s.DeviceMap, strings.Join(deviceMaps, ", "))
	}
	if !oneOf(s.Precision, precisions) {
		return fmt.Errorf("invalid TORCH_DTYPE: %q (expected one of %s)", s.Precision, strings.Join(precisions, ", "))
	}
	if !oneOf(s.Backend, backends) {
		return fmt.Errorf("invalid INFERENCE_BACKEND: %q (expected one of %s)", s.Backend, strings.Join(backends, ", "))
	}
	if s.MaxConcurrentGenerations < 0 {
		return fmt.Errorf("invalid MAX_CONCURRENT_GENERATIONS: %d (must be non-negative)", s.MaxConcurrentGenerations)
	}
	return nil
}

// Addr is the host:port the API server binds to.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
