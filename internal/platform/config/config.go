package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultRepositoryBackend   = "memory"
	defaultPricingRetryMax     = 3
	defaultPricingRetryBackoff = 500 * time.Millisecond
	defaultPricingTaxBasisPts  = 0
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	Pricing   PricingConfig
	Cart      CartConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters. Backend selects the repository
// implementation: "memory" for a process-local store, "firestore" for the
// managed database.
type FirestoreConfig struct {
	Backend      string
	ProjectID    string
	EmulatorHost string
}

// PricingConfig controls repricing behaviour: whether it runs at all, how the
// flat tax is computed, and the lock-conflict retry budget.
type PricingConfig struct {
	Enabled        bool
	TaxBasisPoints int64
	RetryMax       int
	RetryBackoff   time.Duration
}

// CartConfig seeds the runtime-mutable cart behaviour toggles.
type CartConfig struct {
	MergeLikeItems         bool
	MoveNamedOrderItems    bool
	DeleteEmptyNamedOrders bool
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "CARTOPS_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "CARTOPS_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "CARTOPS_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "CARTOPS_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			Backend:      strings.ToLower(stringWithDefault(lookup, "CARTOPS_REPOSITORY_BACKEND", defaultRepositoryBackend)),
			ProjectID:    stringWithDefault(lookup, "CARTOPS_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "CARTOPS_FIRESTORE_EMULATOR_HOST", ""),
		},
		Pricing: PricingConfig{
			Enabled:        boolWithDefault(lookup, "CARTOPS_PRICING_ENABLED", true),
			TaxBasisPoints: int64(intWithDefault(lookup, "CARTOPS_PRICING_TAX_BASIS_POINTS", defaultPricingTaxBasisPts)),
			RetryMax:       intWithDefault(lookup, "CARTOPS_PRICING_RETRY_MAX", defaultPricingRetryMax),
			RetryBackoff:   durationWithDefault(lookup, "CARTOPS_PRICING_RETRY_BACKOFF", defaultPricingRetryBackoff),
		},
		Cart: CartConfig{
			MergeLikeItems:         boolWithDefault(lookup, "CARTOPS_CART_MERGE_LIKE_ITEMS", true),
			MoveNamedOrderItems:    boolWithDefault(lookup, "CARTOPS_CART_MOVE_NAMED_ORDER_ITEMS", true),
			DeleteEmptyNamedOrders: boolWithDefault(lookup, "CARTOPS_CART_DELETE_EMPTY_NAMED_ORDERS", true),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Firestore.Backend {
	case "memory":
	case "firestore":
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	default:
		missing = append(missing, "Firestore.Backend")
	}
	if cfg.Pricing.RetryMax <= 0 {
		missing = append(missing, "Pricing.RetryMax")
	}
	if cfg.Pricing.RetryBackoff <= 0 {
		missing = append(missing, "Pricing.RetryBackoff")
	}
	if cfg.Pricing.TaxBasisPoints < 0 {
		missing = append(missing, "Pricing.TaxBasisPoints")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
