package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"gopkg.in/yaml.v3"
)

const (
	defaultEnvFile           = ".env"
	defaultHTTPAddr          = ":8080"
	defaultBasePath          = "/admin"
	defaultEnvironment       = "Development"
	defaultBackendURL        = "http://localhost:11111"
	defaultBackendTimeout    = 15 * time.Second
	defaultQRPollInterval    = 2 * time.Second
	defaultQRAutoRefresh     = 180 * time.Second
	defaultQRRequestTimeout  = 5 * time.Second
	defaultLogLevel          = "info"
	generatedSessionKeyBytes = 32
)

// AutoRefreshChoices lists the auto-refresh intervals operators may select. Zero disables auto-refresh.
var AutoRefreshChoices = []time.Duration{0, 120 * time.Second, 180 * time.Second, 300 * time.Second}

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	Session    SessionConfig
	QR         QRConfig
	ImageProxy ImageProxyConfig
	Firebase   FirebaseConfig
	Log        LogConfig
}

// ServerConfig configures the HTTP listener and console mount point.
type ServerConfig struct {
	Addr        string
	BasePath    string
	Environment string
}

// BackendConfig points at the download assistant backend.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// SessionConfig holds cookie keys. GeneratedKeys is set when keys were created for this process only.
type SessionConfig struct {
	HashKey       []byte
	BlockKey      []byte
	CookieSecure  bool
	GeneratedKeys bool
}

// QRConfig tunes the QR login controller.
type QRConfig struct {
	PollInterval   time.Duration
	AutoRefresh    time.Duration
	RequestTimeout time.Duration
}

// ImageProxyConfig toggles the thumbnail proxy routes.
type ImageProxyConfig struct {
	Enabled bool
}

// FirebaseConfig enables the Firebase ID token authenticator when ProjectID is set.
type FirebaseConfig struct {
	ProjectID string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// ValidationError is returned when configuration fields are missing or invalid.
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
	configFile   *string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map that takes precedence over every other source.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithConfigFile sets the YAML file path explicitly, overriding ADMIN_CONFIG_FILE.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) {
		o.configFile = &path
	}
}

// Load assembles configuration from defaults, an optional YAML file, .env overrides,
// environment variables and explicit maps, in increasing order of precedence.
func Load(_ context.Context, opts ...Option) (Config, error) {
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

	envLookup := func(key string) (string, bool) {
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
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	configPath := stringWithDefault(envLookup, "ADMIN_CONFIG_FILE", "")
	if options.configFile != nil {
		configPath = *options.configFile
	}
	fileValues, err := loadYAMLFile(configPath)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := envLookup(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	}

	var invalid []string
	duration := func(key string, fallback time.Duration) time.Duration {
		d, ok := durationWithDefault(lookup, key, fallback)
		if !ok {
			invalid = append(invalid, key)
		}
		return d
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:        stringWithDefault(lookup, "ADMIN_HTTP_ADDR", defaultHTTPAddr),
			BasePath:    stringWithDefault(lookup, "ADMIN_BASE_PATH", defaultBasePath),
			Environment: stringWithDefault(lookup, "ADMIN_ENVIRONMENT", defaultEnvironment),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(stringWithDefault(lookup, "ADMIN_BACKEND_URL", defaultBackendURL), "/"),
			Timeout: duration("ADMIN_BACKEND_TIMEOUT", defaultBackendTimeout),
		},
		Session: SessionConfig{
			HashKey:      []byte(stringWithDefault(lookup, "ADMIN_SESSION_HASH_KEY", "")),
			BlockKey:     []byte(stringWithDefault(lookup, "ADMIN_SESSION_BLOCK_KEY", "")),
			CookieSecure: boolWithDefault(lookup, "ADMIN_SESSION_COOKIE_SECURE", false),
		},
		QR: QRConfig{
			PollInterval:   duration("ADMIN_QR_POLL_INTERVAL", defaultQRPollInterval),
			AutoRefresh:    duration("ADMIN_QR_AUTO_REFRESH", defaultQRAutoRefresh),
			RequestTimeout: duration("ADMIN_QR_REQUEST_TIMEOUT", defaultQRRequestTimeout),
		},
		ImageProxy: ImageProxyConfig{
			Enabled: boolWithDefault(lookup, "ADMIN_IMAGE_PROXY_ENABLED", true),
		},
		Firebase: FirebaseConfig{
			ProjectID: stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
		},
		Log: LogConfig{
			Level: stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel),
		},
	}

	if len(cfg.Session.HashKey) == 0 {
		cfg.Session.HashKey = securecookie.GenerateRandomKey(generatedSessionKeyBytes)
		cfg.Session.GeneratedKeys = true
		if len(cfg.Session.BlockKey) == 0 {
			cfg.Session.BlockKey = securecookie.GenerateRandomKey(generatedSessionKeyBytes)
		}
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidAutoRefresh reports whether d is one of AutoRefreshChoices.
func ValidAutoRefresh(d time.Duration) bool {
	for _, choice := range AutoRefreshChoices {
		if d == choice {
			return true
		}
	}
	return false
}

func validateConfig(cfg Config, invalid []string) error {
	fields := append([]string(nil), invalid...)

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		fields = append(fields, "Server.Addr")
	}
	if !strings.HasPrefix(cfg.Server.BasePath, "/") {
		fields = append(fields, "Server.BasePath")
	}
	if u, err := url.Parse(cfg.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		fields = append(fields, "Backend.URL")
	}
	if cfg.Backend.Timeout <= 0 {
		fields = append(fields, "Backend.Timeout")
	}
	switch len(cfg.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		fields = append(fields, "Session.BlockKey")
	}
	if cfg.QR.PollInterval <= 0 {
		fields = append(fields, "QR.PollInterval")
	}
	if !ValidAutoRefresh(cfg.QR.AutoRefresh) {
		fields = append(fields, "QR.AutoRefresh")
	}
	if cfg.QR.RequestTimeout <= 0 {
		fields = append(fields, "QR.RequestTimeout")
	}

	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

type fileConfig struct {
	Server struct {
		Addr        string `yaml:"addr"`
		BasePath    string `yaml:"basePath"`
		Environment string `yaml:"environment"`
	} `yaml:"server"`
	Backend struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`
	Session struct {
		CookieSecure *bool `yaml:"cookieSecure"`
	} `yaml:"session"`
	QR struct {
		PollInterval   string `yaml:"pollInterval"`
		AutoRefresh    string `yaml:"autoRefresh"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"qr"`
	ImageProxy struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"imageProxy"`
	Firebase struct {
		ProjectID string `yaml:"projectId"`
	} `yaml:"firebase"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// loadYAMLFile reads the optional YAML file and flattens it onto environment keys.
// Session keys are deliberately absent: secrets come from the environment only.
func loadYAMLFile(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", path, err)
	}

	values := make(map[string]string)
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			values[key] = strings.TrimSpace(value)
		}
	}
	setBool := func(key string, value *bool) {
		if value != nil {
			values[key] = strconv.FormatBool(*value)
		}
	}
	set("ADMIN_HTTP_ADDR", fc.Server.Addr)
	set("ADMIN_BASE_PATH", fc.Server.BasePath)
	set("ADMIN_ENVIRONMENT", fc.Server.Environment)
	set("ADMIN_BACKEND_URL", fc.Backend.URL)
	set("ADMIN_BACKEND_TIMEOUT", fc.Backend.Timeout)
	setBool("ADMIN_SESSION_COOKIE_SECURE", fc.Session.CookieSecure)
	set("ADMIN_QR_POLL_INTERVAL", fc.QR.PollInterval)
	set("ADMIN_QR_AUTO_REFRESH", fc.QR.AutoRefresh)
	set("ADMIN_QR_REQUEST_TIMEOUT", fc.QR.RequestTimeout)
	setBool("ADMIN_IMAGE_PROXY_ENABLED", fc.ImageProxy.Enabled)
	set("FIREBASE_PROJECT_ID", fc.Firebase.ProjectID)
	set("LOG_LEVEL", fc.Log.Level)
	return values, nil
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
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// durationWithDefault accepts Go durations ("90s") or bare integers interpreted as seconds.
// The boolean is false when a value was present but unparseable.
func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, bool) {
	value, ok := lookup(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return fallback, true
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, false
	}
	return d, true
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
