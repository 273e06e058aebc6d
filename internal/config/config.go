package config

import (
	"io/fs"
	"os"

	"github.com/danielsussa/foxbit-rest-v3/internal/foxbit"
	"github.com/danielsussa/foxbit-rest-v3/internal/signer"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	DefaultStreamURL   = "wss://api.foxbit.com.br/ws/v3/public"
	DefaultGatewayAddr = ":1323"
	DefaultDBFolder    = "."
)

// Config holds everything read from the environment
type Config struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	HeaderPrefix string
	LogLevel     string

	// PlanFile is the YAML file describing the example order (optional)
	PlanFile string
	DBFolder string

	GatewayAddr      string
	GatewaySharedKey string

	StreamURL string
}

// Load reads the given env files (".env" when none is given; missing files
// are skipped) and then the process environment. It does not validate
// credentials; see Validate.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	return Config{
		BaseURL:          getenv("BASE_URL", foxbit.DefaultBaseURL),
		APIKey:           firstEnv("API_KEY", "FOXBIT_API_KEY"),
		APISecret:        firstEnv("API_SECRET", "FOXBIT_API_SECRET"),
		HeaderPrefix:     getenv("HEADER_PREFIX", foxbit.DefaultHeaderPrefix),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		PlanFile:         os.Getenv("PLAN_FILE"),
		DBFolder:         getenv("DB_FOLDER", DefaultDBFolder),
		GatewayAddr:      getenv("GATEWAY_ADDR", DefaultGatewayAddr),
		GatewaySharedKey: os.Getenv("GATEWAY_SHARED_KEY"),
		StreamURL:        getenv("STREAM_URL", DefaultStreamURL),
	}, nil
}

// Validate fails fast with a *signer.ConfigurationError when a credential is missing.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return &signer.ConfigurationError{Name: "API_KEY"}
	}
	if c.APISecret == "" {
		return &signer.ConfigurationError{Name: "API_SECRET"}
	}
	return nil
}

func (c Config) Credentials() signer.Credentials {
	return signer.Credentials{Key: c.APIKey, Secret: c.APISecret}
}

// NewApi builds the exchange client from the config.
func (c Config) NewApi(opts ...foxbit.Option) (*foxbit.Api, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts = append([]foxbit.Option{foxbit.WithHeaderPrefix(c.HeaderPrefix)}, opts...)
	return foxbit.NewApi(c.BaseURL, c.Credentials(), opts...)
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
