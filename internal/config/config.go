package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Location modes.
const (
	LocationModeIP     = "ip"
	LocationModeFixed  = "fixed"
	LocationModeDenied = "denied"
)

// Snapshot backends.
const (
	SnapshotNone  = "none"
	SnapshotRedis = "redis"
	SnapshotFile  = "file"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	APIRateLimit    int // command requests per minute per client IP

	// Location source configuration.
	LocationMode     string
	LocationLat      float64
	LocationLon      float64
	LocationAccuracy float64
	IPAPIURL         string
	IPAPITimeout     time.Duration

	// Mapbox search configuration.
	MapboxToken         string
	MapboxTimeout       time.Duration
	SearchLimit         int
	SearchRatePerMinute int
	SearchCacheSize     int
	SearchCacheTTL      time.Duration
	ReverseGeocode      bool
	RankBy              string

	// Snapshot persistence and state-change feed.
	SnapshotBackend string
	SnapshotFile    string
	RedisAddr       string
	RedisKey        string
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaStateTopic string
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var p parser
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		APIRateLimit:    p.positiveInt("API_RATE_LIMIT", 60),

		LocationMode:     sharedcfg.EnvOrDefault("LOCATION_MODE", LocationModeIP),
		LocationLat:      p.float("LOCATION_LAT", 0),
		LocationLon:      p.float("LOCATION_LON", 0),
		LocationAccuracy: p.float("LOCATION_ACCURACY", 50),
		IPAPIURL:         sharedcfg.EnvOrDefault("IPAPI_URL", "http://ip-api.com/json/"),
		IPAPITimeout:     p.duration("IPAPI_TIMEOUT", "5s"),

		MapboxToken:         os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:       p.duration("MAPBOX_TIMEOUT", "5s"),
		SearchLimit:         p.positiveInt("SEARCH_LIMIT", 10),
		SearchRatePerMinute: p.positiveInt("SEARCH_RATE_PER_MINUTE", 60),
		SearchCacheSize:     p.positiveInt("SEARCH_CACHE_SIZE", 500),
		SearchCacheTTL:      p.duration("SEARCH_CACHE_TTL", "10m"),
		RankBy:              sharedcfg.EnvOrDefault("RANK_BY", "distance"),

		SnapshotBackend: sharedcfg.EnvOrDefault("SNAPSHOT_BACKEND", SnapshotNone),
		SnapshotFile:    sharedcfg.EnvOrDefault("SNAPSHOT_FILE", "data/geostate.json"),
		RedisAddr:       sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisKey:        sharedcfg.EnvOrDefault("REDIS_KEY", "lunch-locator:geostate"),
		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaStateTopic: sharedcfg.EnvOrDefault("KAFKA_STATE_TOPIC", "lunch-geostate"),
	}

	// Reverse geocoding follows the token unless explicitly overridden.
	cfg.ReverseGeocode = cfg.MapboxToken != ""
	if v := os.Getenv("REVERSE_GEOCODE"); v != "" {
		cfg.ReverseGeocode = v == "true"
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LocationMode {
	case LocationModeIP, LocationModeDenied:
	case LocationModeFixed:
		if os.Getenv("LOCATION_LAT") == "" || os.Getenv("LOCATION_LON") == "" {
			return errors.New("LOCATION_MODE=fixed requires LOCATION_LAT and LOCATION_LON")
		}
		if c.LocationLat < -90 || c.LocationLat > 90 {
			return errors.New("LOCATION_LAT must be within [-90, 90]")
		}
		if c.LocationLon < -180 || c.LocationLon > 180 {
			return errors.New("LOCATION_LON must be within [-180, 180]")
		}
	default:
		return fmt.Errorf("invalid LOCATION_MODE %q", c.LocationMode)
	}
	if c.LocationAccuracy < 0 {
		return errors.New("LOCATION_ACCURACY must not be negative")
	}

	if c.SearchLimit > 10 {
		return errors.New("SEARCH_LIMIT must be at most 10")
	}
	if c.ReverseGeocode && c.MapboxToken == "" {
		return errors.New("REVERSE_GEOCODE is true but MAPBOX_TOKEN is not set")
	}
	switch c.RankBy {
	case "distance", "relevance":
	default:
		return fmt.Errorf("invalid RANK_BY %q", c.RankBy)
	}

	switch c.SnapshotBackend {
	case SnapshotNone:
	case SnapshotRedis:
		if c.RedisAddr == "" {
			return errors.New("SNAPSHOT_BACKEND=redis requires REDIS_ADDR")
		}
	case SnapshotFile:
		if c.SnapshotFile == "" {
			return errors.New("SNAPSHOT_BACKEND=file requires SNAPSHOT_FILE")
		}
	default:
		return fmt.Errorf("invalid SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaStateTopic == "" {
			return errors.New("KAFKA_STATE_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

// parser collects the first parse error so Load can report it after building Config.
type parser struct {
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q", key, value)
	}
}

func (p *parser) duration(key, def string) time.Duration {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, s)
		return 0
	}
	return d
}

func (p *parser) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		p.fail(key, s)
		return 0
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s)
		return 0
	}
	return f
}
