package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Search    SearchConfig    `mapstructure:"search"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	GeoIP     GeoIPConfig     `mapstructure:"geoip"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"dbname"`
	SSLMode       string `mapstructure:"sslmode"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SearchConfig holds the viewport search thresholds.
type SearchConfig struct {
	MaxRangeMiles    float64 `mapstructure:"max_range_miles"`
	BufferDegrees    float64 `mapstructure:"buffer_degrees"`
	ExtendCapMiles   float64 `mapstructure:"extend_cap_miles"`
	DebounceMS       int     `mapstructure:"debounce_ms"`
	DefaultPageSize  int     `mapstructure:"default_page_size"`
	MaxPageSize      int     `mapstructure:"max_page_size"`
	ViewportMaxPages int     `mapstructure:"viewport_max_pages"`
	CacheTTLSeconds  int     `mapstructure:"cache_ttl_seconds"`
	DefaultCenterLat float64 `mapstructure:"default_center_lat"`
	DefaultCenterLng float64 `mapstructure:"default_center_lng"`
	DefaultRadiusKm  float64 `mapstructure:"default_radius_km"`
}

func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

type ClusterConfig struct {
	RadiusPx            float64 `mapstructure:"radius_px"`
	MaxZoom             int     `mapstructure:"max_zoom"`
	TileSize            float64 `mapstructure:"tile_size"`
	ClickToleranceMiles float64 `mapstructure:"click_tolerance_miles"`
}

type GeocoderConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
	Country     string `mapstructure:"country"`
	Limit       int    `mapstructure:"limit"`
	TimeoutMS   int    `mapstructure:"timeout_ms"`
}

type GeoIPConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type TemporalConfig struct {
	HostPort     string `mapstructure:"host_port"`
	Namespace    string `mapstructure:"namespace"`
	TaskQueue    string `mapstructure:"task_queue"`
	StatsCron    string `mapstructure:"stats_cron"`
	TopClicksMax int    `mapstructure:"top_clicks_max"`
}

// Load reads configuration from an optional .env file, an optional config
// file and environment variables, in increasing precedence.
func Load(service string) (*Config, error) {
	_ = godotenv.Load(".env") // OK if missing

	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MAPDIR_DATABASE_HOST → database.host
	v.SetEnvPrefix("MAPDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mapdir")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "mapdir")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo_database", "mapdir")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("search.max_range_miles", 500)
	v.SetDefault("search.buffer_degrees", 0.5)
	v.SetDefault("search.extend_cap_miles", 400)
	v.SetDefault("search.debounce_ms", 500)
	v.SetDefault("search.default_page_size", 100)
	v.SetDefault("search.max_page_size", 500)
	v.SetDefault("search.viewport_max_pages", 50)
	v.SetDefault("search.cache_ttl_seconds", 60)
	v.SetDefault("search.default_center_lat", 51.1657)
	v.SetDefault("search.default_center_lng", 10.4515)
	v.SetDefault("search.default_radius_km", 50)

	v.SetDefault("cluster.radius_px", 50)
	v.SetDefault("cluster.max_zoom", 11)
	v.SetDefault("cluster.tile_size", 256)
	v.SetDefault("cluster.click_tolerance_miles", 0.25)

	v.SetDefault("geocoder.enabled", false)
	v.SetDefault("geocoder.base_url", "https://api.mapbox.com/geocoding/v5/mapbox.places")
	v.SetDefault("geocoder.access_token", "")
	v.SetDefault("geocoder.country", "de")
	v.SetDefault("geocoder.limit", 5)
	v.SetDefault("geocoder.timeout_ms", 3000)

	v.SetDefault("geoip.database_path", "")

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "mapdir-stats")
	v.SetDefault("temporal.stats_cron", "*/15 * * * *")
	v.SetDefault("temporal.top_clicks_max", 10)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case DriverMongo:
		if c.Database.MongoURI == "" {
			errs = append(errs, "database.mongo_uri is required")
		}
		if c.Database.MongoDatabase == "" {
			errs = append(errs, "database.mongo_database is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q, got %q", DriverPostgres, DriverMongo, c.Database.Driver))
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	s := c.Search
	if s.MaxRangeMiles <= 0 {
		errs = append(errs, "search.max_range_miles must be positive")
	}
	if s.BufferDegrees < 0 {
		errs = append(errs, "search.buffer_degrees must not be negative")
	}
	if s.ExtendCapMiles <= 0 {
		errs = append(errs, "search.extend_cap_miles must be positive")
	}
	if s.DebounceMS < 0 {
		errs = append(errs, "search.debounce_ms must not be negative")
	}
	if s.DefaultPageSize <= 0 || s.DefaultPageSize > s.MaxPageSize {
		errs = append(errs, fmt.Sprintf("search.default_page_size must be 1-%d, got %d", s.MaxPageSize, s.DefaultPageSize))
	}
	if s.ViewportMaxPages <= 0 {
		errs = append(errs, "search.viewport_max_pages must be positive")
	}
	if s.DefaultCenterLat < -90 || s.DefaultCenterLat > 90 || s.DefaultCenterLng < -180 || s.DefaultCenterLng > 180 {
		errs = append(errs, "search.default_center is not a valid coordinate")
	}
	if s.DefaultRadiusKm <= 0 {
		errs = append(errs, "search.default_radius_km must be positive")
	}

	if c.Cluster.RadiusPx <= 0 {
		errs = append(errs, "cluster.radius_px must be positive")
	}
	if c.Cluster.MaxZoom < 0 || c.Cluster.MaxZoom > 24 {
		errs = append(errs, fmt.Sprintf("cluster.max_zoom must be 0-24, got %d", c.Cluster.MaxZoom))
	}
	if c.Cluster.TileSize <= 0 {
		errs = append(errs, "cluster.tile_size must be positive")
	}
	if c.Cluster.ClickToleranceMiles < 0 {
		errs = append(errs, "cluster.click_tolerance_miles must not be negative")
	}

	if c.Geocoder.Enabled && c.Geocoder.AccessToken == "" {
		errs = append(errs, "geocoder.access_token is required when the geocoder is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
