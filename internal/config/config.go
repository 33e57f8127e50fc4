package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Process roles accepted by Validate.
const (
	RoleWorker       = "worker"
	RoleCoreAPI      = "core-api"
	RoleConductorctl = "conductorctl"
)

type Config struct {
	CoreDatabaseURL string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string

	// Temporal mTLS; empty cert and key mean plaintext.
	TemporalTLSCert       string
	TemporalTLSKey        string
	TemporalTLSCACert     string
	TemporalTLSServerName string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	// KafkaBrokers enables the event bus sink when non-empty.
	KafkaBrokers []string
	EventsTopic  string

	// ThrottleConfig is an optional YAML file overriding per-settings limits.
	ThrottleConfig   string
	HeavyConcurrency int

	// APIURL is where template groups send provisioning requests.
	APIURL        string
	MigrationsDir string

	ServiceName string
	Role        string
}

func Load() (*Config, error) {
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	heavy, err := getEnvInt("HEAVY_CONCURRENCY", 3)
	if err != nil {
		return nil, err
	}
	redisTLS, err := getEnvBool("REDIS_TLS", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		CoreDatabaseURL:       getEnv("CORE_DATABASE_URL", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:           getEnv("METRICS_ADDR", ":9090"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               redisDB,
		RedisTLS:              redisTLS,
		KafkaBrokers:          splitList(getEnv("KAFKA_BROKERS", "")),
		EventsTopic:           getEnv("EVENTS_TOPIC", "conductor.events"),
		ThrottleConfig:        getEnv("THROTTLE_CONFIG", ""),
		HeavyConcurrency:      heavy,
		APIURL:                getEnv("API_URL", "http://localhost:8090/api/v1"),
		MigrationsDir:         getEnv("MIGRATIONS_DIR", "migrations/core"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
	}

	return cfg, nil
}

// Validate checks the settings the given role cannot start without and
// records the role for logging.
func (c *Config) Validate(role string) error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch role {
	case RoleWorker:
		require("CORE_DATABASE_URL", c.CoreDatabaseURL)
		require("TEMPORAL_ADDRESS", c.TemporalAddress)
		require("REDIS_ADDR", c.RedisAddr)
		require("API_URL", c.APIURL)
	case RoleCoreAPI:
		require("CORE_DATABASE_URL", c.CoreDatabaseURL)
		require("TEMPORAL_ADDRESS", c.TemporalAddress)
		require("HTTP_LISTEN_ADDR", c.HTTPListenAddr)
	case RoleConductorctl:
		require("CORE_DATABASE_URL", c.CoreDatabaseURL)
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if (c.TemporalTLSCert == "") != (c.TemporalTLSKey == "") {
		return fmt.Errorf("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set")
	}
	if role == RoleWorker && c.HeavyConcurrency < 1 {
		return fmt.Errorf("HEAVY_CONCURRENCY must be at least 1, got %d", c.HeavyConcurrency)
	}

	c.Role = role
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
