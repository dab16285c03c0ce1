package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIBaseURL  string
	HTTPTimeout time.Duration
	LogLevel    string

	ConsolePort           string
	ConsoleRateLimitRPS   float64
	ConsoleRateLimitBurst int
	ConsoleMaxInFlight    int
	ConsoleMaxConns       int
	UploadSpoolDir        string

	UploadSettleDelay time.Duration
	ResetReloadDelay  time.Duration

	ClientRateLimitRPS   float64
	ClientRateLimitBurst int

	ResilienceRetryMaxAttempts     int
	ResilienceRetryInitialBackoff  time.Duration
	ResilienceRetryMaxBackoff      time.Duration
	ResilienceRetryAfterMax        time.Duration
	ResilienceBreakerEnabled       bool
	ResilienceBreakerMinRequests   int
	ResilienceBreakerFailureRatio  float64
	ResilienceBreakerOpenTimeout   time.Duration
	ResilienceBreakerHalfOpenCalls int

	NATSURL           string
	NATSSubjectPrefix string

	ReportPostgresDSN string

	MCPServerName string
}

// Load reads the environment. When CONFIG_FILE names a YAML file of
// KEY: value pairs, its values are used for keys the environment leaves empty.
func Load() (Config, error) {
	v := values{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fileValues, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		v = fileValues
	}

	return Config{
		APIBaseURL:  v.mustEnv("API_BASE_URL", "http://localhost:8000"),
		HTTPTimeout: v.mustEnvDuration("HTTP_TIMEOUT", 60*time.Second),
		LogLevel:    v.mustEnv("LOG_LEVEL", "info"),

		ConsolePort:           v.mustEnv("CONSOLE_PORT", "8080"),
		ConsoleRateLimitRPS:   v.mustEnvFloat("CONSOLE_RATE_LIMIT_RPS", 20),
		ConsoleRateLimitBurst: v.mustEnvInt("CONSOLE_RATE_LIMIT_BURST", 40),
		ConsoleMaxInFlight:    v.mustEnvInt("CONSOLE_MAX_IN_FLIGHT", 64),
		ConsoleMaxConns:       v.mustEnvInt("CONSOLE_MAX_CONNECTIONS", 256),
		UploadSpoolDir:        v.mustEnv("UPLOAD_SPOOL_DIR", ""),

		UploadSettleDelay: v.mustEnvDuration("UPLOAD_SETTLE_DELAY", 3*time.Second),
		ResetReloadDelay:  v.mustEnvDuration("RESET_RELOAD_DELAY", 2*time.Second),

		ClientRateLimitRPS:   v.mustEnvFloat("CLIENT_RATE_LIMIT_RPS", 10),
		ClientRateLimitBurst: v.mustEnvInt("CLIENT_RATE_LIMIT_BURST", 5),

		ResilienceRetryMaxAttempts:     v.mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceRetryInitialBackoff:  v.mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		ResilienceRetryMaxBackoff:      v.mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 400*time.Millisecond),
		ResilienceRetryAfterMax:        v.mustEnvDuration("RESILIENCE_RETRY_AFTER_MAX", 5*time.Second),
		ResilienceBreakerEnabled:       v.mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests:   v.mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 5),
		ResilienceBreakerFailureRatio:  v.mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.6),
		ResilienceBreakerOpenTimeout:   v.mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 15*time.Second),
		ResilienceBreakerHalfOpenCalls: v.mustEnvInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", 2),

		NATSURL:           v.mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: v.mustEnv("NATS_SUBJECT_PREFIX", "judgments"),

		ReportPostgresDSN: v.mustEnv("REPORT_POSTGRES_DSN", ""),

		MCPServerName: v.mustEnv("MCP_SERVER_NAME", "judgment-search"),
	}, nil
}

// values holds the overlay file; the environment always wins.
type values map[string]string

func readFile(path string) (values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(values, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return out, nil
}

func (v values) lookup(key string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return v[key]
}

func (v values) mustEnv(key, fallback string) string {
	s := v.lookup(key)
	if s == "" {
		return fallback
	}
	return s
}

func (v values) mustEnvInt(key string, fallback int) int {
	s := v.lookup(key)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func (v values) mustEnvFloat(key string, fallback float64) float64 {
	s := v.lookup(key)
	if s == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (v values) mustEnvBool(key string, fallback bool) bool {
	s := v.lookup(key)
	if s == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("3s") or bare milliseconds ("3000").
func (v values) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	s := v.lookup(key)
	if s == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
