// Package config loads the GlaucoScan settings.
//
// Layers, lowest precedence first: built-in defaults, an optional YAML file,
// .env files, the process environment (GLAUCOSCAN_ prefix) and explicit overrides
// such as command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/glaucoscan/internal/logging"
	"github.com/aretw0/glaucoscan/internal/runtime"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GLAUCOSCAN_"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// StoreConfig selects and tunes the session store.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver" validate:"oneof=memory file redis"`
	Path          string        `mapstructure:"path" validate:"required_if=Driver file"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Prefix        string        `mapstructure:"prefix"`
}

// Config is the resolved application configuration.
type Config struct {
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	AnalysisDelay     time.Duration `mapstructure:"analysis_delay" validate:"gte=0"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	StrictContentType bool          `mapstructure:"strict_content_type"`
	Store             StoreConfig   `mapstructure:"store"`

	// EncryptionKey is a hex-encoded AES-256 key. Empty disables encryption at rest.
	EncryptionKey  string   `mapstructure:"encryption_key" validate:"omitempty,hexadecimal,len=64"`
	RedactPatterns []string `mapstructure:"redact_patterns"`
	LogLevel       string   `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
}

// Keys lists every dotted configuration key.
var Keys = []string{
	"port",
	"analysis_delay",
	"max_upload_bytes",
	"strict_content_type",
	"store.driver",
	"store.path",
	"store.redis_addr",
	"store.redis_password",
	"store.redis_db",
	"store.ttl",
	"store.prefix",
	"encryption_key",
	"redact_patterns",
	"log_level",
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"port":                8080,
		"analysis_delay":      runtime.DefaultAnalysisDelay.String(),
		"max_upload_bytes":    int64(10 << 20),
		"strict_content_type": false,
		"store": map[string]any{
			"driver":         DriverMemory,
			"path":           ".glaucoscan/sessions",
			"redis_addr":     "",
			"redis_password": "",
			"redis_db":       0,
			"ttl":            "0s",
			"prefix":         "glaucoscan:session:",
		},
		"encryption_key":  "",
		"redact_patterns": []string{},
		"log_level":       "info",
	}
}

// Options controls where Load looks for settings.
type Options struct {
	// File is a YAML file. A missing file is an error only when Required is set.
	File     string
	Required bool

	// EnvFiles are read with godotenv. Missing files are skipped.
	EnvFiles []string

	// Environ replaces os.Environ, mostly for tests.
	Environ []string

	// Overrides win over every other layer, keyed by dotted key.
	Overrides map[string]any
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	values := Defaults()

	if opts.File != "" {
		fromFile, err := readYAML(opts.File)
		switch {
		case errors.Is(err, os.ErrNotExist) && !opts.Required:
		case err != nil:
			return nil, err
		default:
			merge(values, fromFile)
		}
	}

	env, err := readEnv(opts.EnvFiles, opts.Environ)
	if err != nil {
		return nil, err
	}
	for _, key := range Keys {
		if v, ok := env[EnvName(key)]; ok {
			set(values, key, v)
		}
	}

	for key, v := range opts.Overrides {
		set(values, key, v)
	}

	cfg, err := decode(values)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnvName maps a dotted key to its environment variable.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Level returns the parsed log level.
func (c *Config) Level() slog.Level {
	return logging.ParseLevel(c.LogLevel)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports them by config key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", keyFor(fe.StructNamespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

var fieldKeys = map[string]string{
	"Config.Port":                "port",
	"Config.AnalysisDelay":       "analysis_delay",
	"Config.MaxUploadBytes":      "max_upload_bytes",
	"Config.Store.Driver":        "store.driver",
	"Config.Store.Path":          "store.path",
	"Config.Store.RedisAddr":     "store.redis_addr",
	"Config.Store.RedisDB":       "store.redis_db",
	"Config.Store.TTL":           "store.ttl",
	"Config.EncryptionKey":       "encryption_key",
	"Config.LogLevel":            "log_level",
	"Config.StrictContentType":   "strict_content_type",
	"Config.Store.RedisPassword": "store.redis_password",
}

func keyFor(namespace string) string {
	if k, ok := fieldKeys[namespace]; ok {
		return k
	}
	return namespace
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return out, nil
}

func readEnv(files []string, environ []string) (map[string]string, error) {
	env := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", f, err)
		}
		for k, v := range vals {
			env[k] = v
		}
	}

	if environ == nil {
		environ = os.Environ()
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

func decode(values map[string]any) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(values); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func set(values map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	m := values
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
