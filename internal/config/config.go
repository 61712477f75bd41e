package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Graph    GraphConfig
	Logging  LoggingConfig
	Upstream UpstreamConfig
	Redis    RedisConfig
	Cards    CardsConfig
	Entities EntityCatalogue
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the card link graph (Neo4j).
// An empty URI disables the projection.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	Colored       bool
	IncludeCaller bool
}

// UpstreamConfig selects and tunes the quickpay API client.
type UpstreamConfig struct {
	Mode          string // v1|v2|fixtures
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	FixturesDir   string
}

// RedisConfig points at the shared in-flight lock store. Empty Addr keeps
// locks in process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CardsConfig tunes the card panel behaviour.
type CardsConfig struct {
	DefaultStrategy string // refetch|optimistic
	PanelIdleTTL    time.Duration
	ConfirmationTTL time.Duration
}

// Entity names one business unit.
type Entity struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// EntityCatalogue lists known entities in display order.
type EntityCatalogue []Entity

// Name returns the display name for code, or the code itself when unknown.
func (c EntityCatalogue) Name(code string) string {
	for _, e := range c {
		if e.Code == code {
			return e.Name
		}
	}
	return code
}

// Codes returns every entity code in catalogue order.
func (c EntityCatalogue) Codes() []string {
	codes := make([]string, 0, len(c))
	for _, e := range c {
		codes = append(codes, e.Code)
	}
	return codes
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultEnvFile          = ".env"
	defaultUpstreamMode     = "fixtures"
	defaultUpstreamTimeout  = 15 * time.Second
	defaultUpstreamRate     = 10
	defaultUpstreamBurst    = 5
	defaultStrategy         = "refetch"
	defaultPanelIdleTTL     = 10 * time.Minute
	defaultConfirmationTTL  = 2 * time.Minute
)

// DefaultEntities is the catalogue used when ENTITIES_FILE is not set.
func DefaultEntities() EntityCatalogue {
	return EntityCatalogue{
		{Code: "wc", Name: "WholeSale Communications"},
		{Code: "cg", Name: "Contract Genie"},
		{Code: "vbc", Name: "Voice Broadcasting"},
	}
}

// Load reads configuration from environment variables, applying defaults.
// Variables from an optional .env file are loaded first without overriding
// values already present in the environment.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			AllowedOriginsCSV: os.Getenv("SERVER_ALLOWED_ORIGINS"),
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Upstream: UpstreamConfig{
			Mode:          strings.ToLower(valueOrDefault("UPSTREAM_MODE", defaultUpstreamMode)),
			BaseURL:       strings.TrimRight(os.Getenv("UPSTREAM_BASE_URL"), "/"),
			RatePerSecond: parseFloatWithDefault("UPSTREAM_RATE_PER_SEC", defaultUpstreamRate),
			Burst:         parseIntWithDefault("UPSTREAM_BURST", defaultUpstreamBurst),
			FixturesDir:   os.Getenv("UPSTREAM_FIXTURES_DIR"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseIntWithDefault("REDIS_DB", 0),
		},
		Cards: CardsConfig{
			DefaultStrategy: strings.ToLower(valueOrDefault("CARDS_DEFAULT_STRATEGY", defaultStrategy)),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", defaultIdleTimeout, &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
		{"UPSTREAM_TIMEOUT", defaultUpstreamTimeout, &cfg.Upstream.Timeout},
		{"PANEL_IDLE_TTL", defaultPanelIdleTTL, &cfg.Cards.PanelIdleTTL},
		{"CONFIRMATION_TTL", defaultConfirmationTTL, &cfg.Cards.ConfirmationTTL},
	}
	for _, d := range durations {
		val, err := parseDurationWithDefault(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = val
	}

	entities, err := loadEntities(os.Getenv("ENTITIES_FILE"))
	if err != nil {
		return Config{}, err
	}
	cfg.Entities = entities

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Upstream.Mode {
	case "v1", "v2":
		if c.Upstream.BaseURL == "" {
			return fmt.Errorf("UPSTREAM_BASE_URL is required when UPSTREAM_MODE=%s", c.Upstream.Mode)
		}
	case "fixtures":
	default:
		return fmt.Errorf("invalid UPSTREAM_MODE %q (want v1, v2 or fixtures)", c.Upstream.Mode)
	}
	if c.Upstream.RatePerSecond <= 0 {
		return fmt.Errorf("UPSTREAM_RATE_PER_SEC must be positive")
	}
	if c.Upstream.Burst < 1 {
		return fmt.Errorf("UPSTREAM_BURST must be at least 1")
	}
	switch c.Cards.DefaultStrategy {
	case "refetch", "optimistic":
	default:
		return fmt.Errorf("invalid CARDS_DEFAULT_STRATEGY %q", c.Cards.DefaultStrategy)
	}
	return nil
}

func loadEnvFile() error {
	path, explicit := os.LookupEnv("ENV_FILE")
	if !explicit {
		path = defaultEnvFile
	}
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

type entitiesFile struct {
	Entities []Entity `yaml:"entities"`
}

func loadEntities(path string) (EntityCatalogue, error) {
	if path == "" {
		return DefaultEntities(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entities file: %w", err)
	}
	var file entitiesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse entities file %s: %w", path, err)
	}
	if len(file.Entities) == 0 {
		return nil, fmt.Errorf("entities file %s lists no entities", path)
	}
	seen := make(map[string]struct{}, len(file.Entities))
	for _, e := range file.Entities {
		if e.Code == "" {
			return nil, fmt.Errorf("entities file %s: entry without code", path)
		}
		if _, dup := seen[e.Code]; dup {
			return nil, fmt.Errorf("entities file %s: duplicate code %q", path, e.Code)
		}
		seen[e.Code] = struct{}{}
	}
	return EntityCatalogue(file.Entities), nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseFloatWithDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			return val
		}
	}
	return fallback
}

func parseDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
