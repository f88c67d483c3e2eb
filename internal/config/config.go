// Package config assembles the process configuration from defaults, an
// optional YAML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	CacheNone     = "none"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

type Config struct {
	DriverID     int
	StartLon     float64
	StartLat     float64
	TickEvery    time.Duration
	PublishEvery time.Duration

	MapboxToken           string
	DirectionsBaseURL     string
	DirectionsProfile     string
	DirectionsMaxAttempts int
	DirectionsTimeout     time.Duration

	SocketServer string
	MapStyle     string
	Port         string

	RouteCache    string
	RouteCacheTTL time.Duration
	DBPath        string
	DatabaseURL   string
	RedisAddr     string

	AMQPURL      string
	AMQPExchange string

	LogLevel string
	LogJSON  bool
}

// New returns a viper instance with every key defaulted and environment
// lookup enabled. Keys are lower-case; DRIVER_ID maps to driver_id.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("driver_id", 0)
	v.SetDefault("driver_start_lon", -73.996207)
	v.SetDefault("driver_start_lat", 40.717573)
	v.SetDefault("tick_interval", "2s")
	v.SetDefault("publish_interval", "2s")

	v.SetDefault("mapbox_access_token", "")
	v.SetDefault("directions_base_url", "https://api.mapbox.com")
	v.SetDefault("directions_profile", "driving-traffic")
	v.SetDefault("directions_max_attempts", 1)
	v.SetDefault("directions_timeout", "10s")

	v.SetDefault("socket_server", "ws://localhost:3001/socket")
	v.SetDefault("map_style", "mapbox://styles/mapbox/streets-v9")
	v.SetDefault("port", "8080")

	v.SetDefault("route_cache", CacheNone)
	v.SetDefault("route_cache_ttl", "5m")
	v.SetDefault("db_path", "data/routes.db")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "localhost:6379")

	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "driver_topic")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	return v
}

// ReadFile merges a YAML config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	return nil
}

// Load builds the immutable Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		DriverID:     v.GetInt("driver_id"),
		StartLon:     v.GetFloat64("driver_start_lon"),
		StartLat:     v.GetFloat64("driver_start_lat"),
		TickEvery:    v.GetDuration("tick_interval"),
		PublishEvery: v.GetDuration("publish_interval"),

		MapboxToken:           v.GetString("mapbox_access_token"),
		DirectionsBaseURL:     strings.TrimRight(v.GetString("directions_base_url"), "/"),
		DirectionsProfile:     v.GetString("directions_profile"),
		DirectionsMaxAttempts: v.GetInt("directions_max_attempts"),
		DirectionsTimeout:     v.GetDuration("directions_timeout"),

		SocketServer: v.GetString("socket_server"),
		MapStyle:     v.GetString("map_style"),
		Port:         v.GetString("port"),

		RouteCache:    strings.ToLower(strings.TrimSpace(v.GetString("route_cache"))),
		RouteCacheTTL: v.GetDuration("route_cache_ttl"),
		DBPath:        v.GetString("db_path"),
		DatabaseURL:   v.GetString("database_url"),
		RedisAddr:     v.GetString("redis_addr"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),

		LogLevel: v.GetString("log_level"),
		LogJSON:  v.GetBool("log_json"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.DriverID < 0 {
		errs = append(errs, fmt.Errorf("driver_id must not be negative, got %d", c.DriverID))
	}
	if c.StartLon < -180 || c.StartLon > 180 || c.StartLat < -90 || c.StartLat > 90 {
		errs = append(errs, fmt.Errorf("start position out of range: %v,%v", c.StartLon, c.StartLat))
	}
	if c.TickEvery <= 0 {
		errs = append(errs, errors.New("tick_interval must be positive"))
	}
	if c.PublishEvery <= 0 {
		errs = append(errs, errors.New("publish_interval must be positive"))
	}
	if c.DirectionsMaxAttempts < 1 {
		errs = append(errs, errors.New("directions_max_attempts must be at least 1"))
	}

	switch c.RouteCache {
	case CacheNone, CacheSQLite, CacheRedis:
	case CachePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("database_url is required when route_cache=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown route_cache %q", c.RouteCache))
	}

	return errors.Join(errs...)
}

// WatchLogLevel calls apply with the new log_level every time the config
// file changes on disk.
func WatchLogLevel(v *viper.Viper, apply func(level string)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		apply(v.GetString("log_level"))
	})
	v.WatchConfig()
}
