// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Membership backends.
const (
	BackendPostgres = "postgres"
	BackendRecords  = "records"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server (dashboard, map, sign-in) listens on (e.g. :8081).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN for users, identities, sessions and audit logs.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// MembershipBackend selects where organizations and memberships are read from: "postgres" or "records".
	MembershipBackend string `mapstructure:"MEMBERSHIP_BACKEND"`
	// RecordServiceURL is the base URL of the record service; required when MembershipBackend is "records".
	RecordServiceURL string `mapstructure:"RECORD_SERVICE_URL"`
	// RecordServiceToken is the optional bearer token for the record service.
	RecordServiceToken string `mapstructure:"RECORD_SERVICE_TOKEN"`

	// RedisAddr enables the membership cache when set (e.g. localhost:6379).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// RoleCacheTTL is how long a membership lookup is cached (e.g. "30s").
	RoleCacheTTL string `mapstructure:"ROLE_CACHE_TTL"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA); used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "danus-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "danus-dashboard").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTSessionTTL is the session credential lifetime (e.g. "24h").
	JWTSessionTTL string `mapstructure:"JWT_SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SessionCookieName is the cookie that carries the session credential.
	SessionCookieName string `mapstructure:"SESSION_COOKIE_NAME"`
	// SignInPath is where guards send unauthenticated users.
	SignInPath string `mapstructure:"SIGN_IN_PATH"`
	// ProtectedPrefixes is a comma-separated list of path prefixes that need a session (e.g. "/dashboard,/map").
	ProtectedPrefixes string `mapstructure:"PROTECTED_PREFIXES"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure forces plaintext to the collector.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. When set, auth events are
	// published to Kafka and written to the audit log by the worker.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic for auth events (default danus-auth-events).
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// Env is the application environment (e.g. "development", "production"). Production requires secure cookies.
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so Unmarshal sees env-only values.
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MEMBERSHIP_BACKEND", BackendPostgres)
	v.SetDefault("RECORD_SERVICE_URL", "")
	v.SetDefault("RECORD_SERVICE_TOKEN", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ROLE_CACHE_TTL", "30s")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "danus-auth")
	v.SetDefault("JWT_AUDIENCE", "danus-dashboard")
	v.SetDefault("JWT_SESSION_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_COOKIE_NAME", "danus_session")
	v.SetDefault("SIGN_IN_PATH", "/login")
	v.SetDefault("PROTECTED_PREFIXES", "/dashboard,/map")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "danus-dashboard")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_TOPIC", "danus-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "danus-audit-worker")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	cfg.MembershipBackend = strings.ToLower(strings.TrimSpace(cfg.MembershipBackend))
	switch cfg.MembershipBackend {
	case BackendPostgres:
	case BackendRecords:
		if cfg.RecordServiceURL == "" {
			return nil, errors.New("config: RECORD_SERVICE_URL must be set when MEMBERSHIP_BACKEND=records")
		}
	default:
		return nil, errors.New("config: MEMBERSHIP_BACKEND must be postgres or records")
	}

	if !strings.HasPrefix(cfg.SignInPath, "/") {
		return nil, errors.New("config: SIGN_IN_PATH must be an absolute path")
	}
	for _, p := range cfg.ProtectedPrefixList() {
		if p == cfg.SignInPath || strings.HasPrefix(cfg.SignInPath, p+"/") {
			return nil, errors.New("config: SIGN_IN_PATH must not be under a protected prefix")
		}
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionTTL parses JWTSessionTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTSessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// RoleCacheDuration parses RoleCacheTTL. Returns 30s if unset or invalid.
func (c *Config) RoleCacheDuration() time.Duration {
	d, err := time.ParseDuration(c.RoleCacheTTL)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// ProtectedPrefixList returns the protected path prefixes without trailing slashes.
func (c *Config) ProtectedPrefixList() []string {
	if c == nil {
		return nil
	}
	out := splitList(c.ProtectedPrefixes)
	for i, p := range out {
		if p != "/" {
			out[i] = strings.TrimRight(p, "/")
		}
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
