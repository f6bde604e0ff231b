package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	AppEnv string `mapstructure:"APP_ENV"`
	Port   string `mapstructure:"PORT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTTTLHours int    `mapstructure:"JWT_TTL_HOURS"`

	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	RedisChannel string `mapstructure:"REDIS_CHANNEL"`

	GoogleClientID string `mapstructure:"GOOGLE_CLIENT_ID"`

	PlacesAPIKey          string `mapstructure:"PLACES_API_KEY"`
	PlacesBaseURL         string `mapstructure:"PLACES_BASE_URL"`
	ReverseGeocodeURL     string `mapstructure:"REVERSE_GEOCODE_URL"`
	ForwardGeocodeURL     string `mapstructure:"FORWARD_GEOCODE_URL"`
	GeocodeTimeoutSeconds int    `mapstructure:"GEOCODE_TIMEOUT_SECONDS"`
	SuggestDebounceMS     int    `mapstructure:"SUGGEST_DEBOUNCE_MS"`

	MediaBucket         string `mapstructure:"MEDIA_BUCKET"`
	MediaCDNDomain      string `mapstructure:"MEDIA_CDN_DOMAIN"`
	StorageEmulatorHost string `mapstructure:"STORAGE_EMULATOR_HOST"`
	MediaMaxMB          int    `mapstructure:"MEDIA_MAX_MB"`

	CORSAllowedOrigins     string  `mapstructure:"CORS_ALLOWED_ORIGINS"`
	DiscoveryDefaultRadius float64 `mapstructure:"DISCOVERY_DEFAULT_RADIUS"`

	OtelEnabled  bool   `mapstructure:"OTEL_ENABLED"`
	OtelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

var AppConfig *Config

var defaults = map[string]interface{}{
	"APP_ENV":                     "development",
	"PORT":                        "8080",
	"DATABASE_URL":                "",
	"JWT_SECRET":                  "dev-secret-change-me",
	"JWT_TTL_HOURS":               24 * 7,
	"REDIS_ADDR":                  "",
	"REDIS_CHANNEL":               "jammr:chat",
	"GOOGLE_CLIENT_ID":            "",
	"PLACES_API_KEY":              "",
	"PLACES_BASE_URL":             "https://maps.googleapis.com/maps/api/place",
	"REVERSE_GEOCODE_URL":         "https://api.bigdatacloud.net/data/reverse-geocode-client",
	"FORWARD_GEOCODE_URL":         "https://api.bigdatacloud.net/data/forward-geocode-client",
	"GEOCODE_TIMEOUT_SECONDS":     5,
	"SUGGEST_DEBOUNCE_MS":         300,
	"MEDIA_BUCKET":                "",
	"MEDIA_CDN_DOMAIN":            "",
	"STORAGE_EMULATOR_HOST":       "",
	"MEDIA_MAX_MB":                25,
	"CORS_ALLOWED_ORIGINS":        "http://localhost:5173",
	"DISCOVERY_DEFAULT_RADIUS":    25.0,
	"OTEL_ENABLED":                false,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
}

// LoadConfig loads the configuration from a .env file and environment variables
// and stores it in AppConfig.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")

	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read .env: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = &cfg
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	}
	return false
}

// Validate rejects configurations that cannot run in production.
func (c *Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required in production")
	}
	if c.JWTSecret == "" || c.JWTSecret == defaults["JWT_SECRET"] {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c *Config) GeocodeTimeout() time.Duration {
	return time.Duration(c.GeocodeTimeoutSeconds) * time.Second
}

func (c *Config) SuggestDebounce() time.Duration {
	return time.Duration(c.SuggestDebounceMS) * time.Millisecond
}

// MediaMaxBytes is the largest accepted media upload. Non-positive values
// fall back to the default.
func (c *Config) MediaMaxBytes() int64 {
	mb := c.MediaMaxMB
	if mb <= 0 {
		mb = defaults["MEDIA_MAX_MB"].(int)
	}
	return int64(mb) << 20
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
