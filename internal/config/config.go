package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	ListenPort      string        `validate:"required"` // ex: ":8080"
	ShutdownTimeout time.Duration `validate:"gt=0"`     // ex: 5s
	RequestTimeout  time.Duration `validate:"gt=0"`     // per-request timeout for REST routes (ex: 5s)

	LogLevel  string `validate:"oneof=debug info warn error"` // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Record store
	StoreBackend string `validate:"oneof=redis postgres sqlite"`        // where bookmark rows live
	DatabaseDSN  string `validate:"required_unless=StoreBackend redis"` // gorm DSN for postgres/sqlite

	// Identity
	JWTSecret string `validate:"required,min=16"` // HS256 shared secret
	JWTIssuer string // expected "iss" claim, empty = not checked

	// Live lists
	ResyncInterval  time.Duration `validate:"gt=0"`  // periodic full reload of active lists (default: 5m)
	JanitorInterval time.Duration `validate:"gt=0"`  // how often idle sessions are swept (default: 1m)
	IdleSessionTTL  time.Duration `validate:"gt=0"`  // release an unobserved list after this long (default: 10m)
	ReadyWait       time.Duration `validate:"gte=0"` // how long GET /api/bookmarks waits for the initial load

	// Optional homepage bookmarks import on startup
	ImportFile  string // path to a homepage bookmarks.yaml (empty = disabled)
	ImportOwner string `validate:"required_with=ImportFile"` // owner the imported bookmarks belong to

	// Redis
	RedisAddr             string        `validate:"required"` // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Access restrictions
	AllowedHosts   []string // optional, restrict access to specific Host headers
	AllowedCIDRS   []string // optional, restrict infra endpoints to specific IPs/CIDRs
	AllowedOrigins []string // optional, CORS + websocket origins (empty = same origin only)
	TrustProxy     bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	// Rate limiting (per owner, or per IP when anonymous)
	RateLimitBurst  int `validate:"gte=1"`
	RateLimitPerMin int `validate:"gte=1"`
}

func Load() *Config {
	// A missing .env is fine, real environment wins anyway.
	_ = godotenv.Load()

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("LINKDECK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("LINKDECK_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("LINKDECK_REQUEST_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("LINKDECK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("LINKDECK_PRETTY_LOG", true),

		// Store
		StoreBackend: strings.ToLower(getenv("LINKDECK_STORE_BACKEND", BackendRedis)),
		DatabaseDSN:  getenv("LINKDECK_DATABASE_DSN", ""),

		// Identity
		JWTSecret: requireEnv("LINKDECK_JWT_SECRET"),
		JWTIssuer: getenv("LINKDECK_JWT_ISSUER", "linkdeck"),

		// Live lists
		ResyncInterval:  mustDuration("LINKDECK_RESYNC_INTERVAL", 5*time.Minute),
		JanitorInterval: mustDuration("LINKDECK_JANITOR_INTERVAL", time.Minute),
		IdleSessionTTL:  mustDuration("LINKDECK_IDLE_SESSION_TTL", 10*time.Minute),
		ReadyWait:       mustDuration("LINKDECK_READY_WAIT", 2*time.Second),

		// Import
		ImportFile:  getenv("LINKDECK_IMPORT_FILE", ""),
		ImportOwner: getenv("LINKDECK_IMPORT_OWNER", ""),

		// Redis settings
		RedisAddr:             requireEnv("LINKDECK_REDIS_ADDR"),
		RedisUser:             getenv("LINKDECK_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("LINKDECK_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("LINKDECK_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("LINKDECK_REDIS_DB"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:   splitAndTrim(getenv("LINKDECK_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   parseAllowedIPs(getenv("LINKDECK_ALLOWED_CIDRS", "")),
		AllowedOrigins: splitAndTrim(getenv("LINKDECK_ALLOWED_ORIGINS", "")),
		TrustProxy:     mustBool("LINKDECK_TRUST_PROXY", true),

		RateLimitBurst:  getenvInt("LINKDECK_RATE_LIMIT_BURST", 30),
		RateLimitPerMin: getenvInt("LINKDECK_RATE_LIMIT_PER_MIN", 120),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: LINKDECK_REDIS_PASSWORD is required when LINKDECK_REDIS_PASSWORD_REQUIRED=true")
	}

	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid configuration: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Validate checks field constraints declared in struct tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cfgCopy := *c
	cfgCopy.RedisPassword = "***REDACTED***"
	cfgCopy.JWTSecret = "***REDACTED***"
	if c.RedisUser != "" {
		cfgCopy.RedisUser = "***REDACTED***"
	}
	if c.DatabaseDSN != "" {
		cfgCopy.DatabaseDSN = "***REDACTED***"
	}
	return cfgCopy
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
