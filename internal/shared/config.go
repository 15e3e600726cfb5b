package shared

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string `koanf:"app_env"`
	LogLevel    string `koanf:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
	HTTPAddr    string `koanf:"http_addr" validate:"required"`
	MetricsAddr string `koanf:"metrics_addr"`

	StoreDriver string `koanf:"store_driver" validate:"oneof=mysql postgres"`
	MySQLDSN    string `koanf:"mysql_dsn"`
	PostgresDSN string `koanf:"postgres_dsn"`

	RedisAddr string        `koanf:"redis_addr"`
	RedisDB   int           `koanf:"redis_db"`
	RedisPass string        `koanf:"redis_password"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`

	Locations []string            `koanf:"locations" validate:"min=1,dive,required"`
	Buckets   map[string][]string `koanf:"buckets"`
	TimeZone  string              `koanf:"timezone"`

	RegularEvery time.Duration `koanf:"regular_every" validate:"gt=0"`
	VarietyEvery time.Duration `koanf:"variety_every" validate:"gt=0"`
	RunOnStart   bool          `koanf:"run_on_start"`

	SourceMode       string        `koanf:"source_mode" validate:"oneof=browser offline api"`
	SourceSearchURL  string        `koanf:"source_search_url" validate:"required"`
	SourceTimeout    time.Duration `koanf:"source_timeout" validate:"gt=0"`
	SourceMaxResults int           `koanf:"source_max_results" validate:"gte=1,lte=8"`
	SourceHeadless   bool          `koanf:"source_headless"`
	SourceUserAgent  string        `koanf:"source_user_agent"`
	SourceRPS        float64       `koanf:"source_rps"`
	SourceAPIURL     string        `koanf:"source_api_url"`
	SourceAPIKey     string        `koanf:"source_api_key"`

	SocialPlatforms    []string      `koanf:"social_platforms" validate:"dive,required"`
	ChannelTimeout     time.Duration `koanf:"channel_timeout" validate:"gt=0"`
	ChannelParallelism int           `koanf:"channel_parallelism" validate:"gte=1"`

	RecentPostsLimit int      `koanf:"recent_posts_limit" validate:"gte=1,lte=50"`
	CORSOrigins      []string `koanf:"cors_origins"`
	TriggerPerMinute int      `koanf:"trigger_per_minute" validate:"gte=1"`
}

// DefaultLocations is the location pool used when nothing is configured.
var DefaultLocations = []string{"Bali", "Paris", "Tokyo", "New York", "London", "Bangkok", "Dubai"}

func defaults() Config {
	return Config{
		AppEnv:      "prod",
		LogLevel:    "info",
		HTTPAddr:    ":8080",
		StoreDriver: "mysql",
		MySQLDSN:    "root:root@tcp(localhost:3306)/hotel_agent?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		PostgresDSN: "host=localhost port=5432 user=hotel password=hotel dbname=hotel_agent sslmode=disable",
		RedisAddr:   "localhost:6379",
		CacheTTL:    5 * time.Minute,
		Locations:   append([]string(nil), DefaultLocations...),
		Buckets: map[string][]string{
			"morning":   {"Bali", "Tokyo"},
			"afternoon": {"Paris", "London"},
			"evening":   {"New York", "Dubai"},
			"night":     {"Bangkok", "Bali"},
		},
		TimeZone:         "Local",
		RegularEvery:     2 * time.Hour,
		VarietyEvery:     6 * time.Hour,
		RunOnStart:       true,
		SourceMode:       "browser",
		SourceSearchURL:  "https://www.expedia.com/Hotel-Search?destination=%s",
		SourceTimeout:    30 * time.Second,
		SourceMaxResults: 8,
		SourceHeadless:   true,
		SourceUserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		SourceRPS:          0.2,
		SocialPlatforms:    []string{"twitter", "facebook", "instagram"},
		ChannelTimeout:     10 * time.Second,
		ChannelParallelism: 4,
		RecentPostsLimit:   10,
		CORSOrigins:        []string{"*"},
		TriggerPerMinute:   5,
	}
}

// envKeys maps environment variables onto config keys. Anything not listed
// is ignored.
var envKeys = map[string]string{
	"APP_ENV":             "app_env",
	"LOG_LEVEL":           "log_level",
	"HTTP_ADDR":           "http_addr",
	"PORT":                "port",
	"METRICS_ADDR":        "metrics_addr",
	"STORE_DRIVER":        "store_driver",
	"MYSQL_DSN":           "mysql_dsn",
	"POSTGRES_DSN":        "postgres_dsn",
	"REDIS_ADDR":          "redis_addr",
	"REDIS_DB":            "redis_db",
	"REDIS_PASSWORD":      "redis_password",
	"CACHE_TTL":           "cache_ttl",
	"LOCATIONS":           "locations",
	"BUCKET_MORNING":      "buckets.morning",
	"BUCKET_AFTERNOON":    "buckets.afternoon",
	"BUCKET_EVENING":      "buckets.evening",
	"BUCKET_NIGHT":        "buckets.night",
	"TIMEZONE":            "timezone",
	"REGULAR_EVERY":       "regular_every",
	"VARIETY_EVERY":       "variety_every",
	"RUN_ON_START":        "run_on_start",
	"SOURCE_MODE":         "source_mode",
	"SOURCE_SEARCH_URL":   "source_search_url",
	"SOURCE_TIMEOUT":      "source_timeout",
	"SOURCE_MAX_RESULTS":  "source_max_results",
	"SOURCE_HEADLESS":     "source_headless",
	"SOURCE_USER_AGENT":   "source_user_agent",
	"SOURCE_RPS":          "source_rps",
	"SOURCE_API_URL":      "source_api_url",
	"SOURCE_API_KEY":      "source_api_key",
	"SOCIAL_PLATFORMS":    "social_platforms",
	"CHANNEL_TIMEOUT":     "channel_timeout",
	"CHANNEL_PARALLELISM": "channel_parallelism",
	"RECENT_POSTS_LIMIT":  "recent_posts_limit",
	"CORS_ORIGINS":        "cors_origins",
	"TRIGGER_PER_MINUTE":  "trigger_per_minute",
}

// sliceKeys arrive from the environment as comma-separated strings.
var sliceKeys = []string{
	"locations",
	"buckets.morning", "buckets.afternoon", "buckets.evening", "buckets.night",
	"social_platforms",
	"cors_origins",
}

// Load reads .env (if any), then defaults < config file < environment.
// It exits the process on invalid configuration.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env could not be loaded")
	}
	c, err := LoadFrom(findConfigFile())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return c
}

// LoadFrom is Load without .env handling; path may be empty.
func LoadFrom(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", func(s string) string { return envKeys[s] }), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}
	if err := splitSlices(k); err != nil {
		return Config{}, err
	}
	// PORT is the conventional override for the listen address.
	if p := k.String("port"); p != "" {
		_ = k.Set("http_addr", ":"+strings.TrimPrefix(p, ":"))
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(c); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	if c.SourceMode == "browser" && !strings.Contains(c.SourceSearchURL, "%s") {
		return Config{}, fmt.Errorf("source_search_url must contain %%s for the location")
	}
	if c.SourceMode == "api" && (c.SourceAPIURL == "" || c.SourceAPIKey == "") {
		return Config{}, fmt.Errorf("source_api_url and source_api_key are required in api mode")
	}
	return c, nil
}

// Location resolves the configured time zone, falling back to time.Local.
func (c Config) Location() *time.Location {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		log.Warn().Err(err).Str("tz", c.TimeZone).Msg("unknown timezone, using local")
		return time.Local
	}
	return loc
}

func findConfigFile() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func splitSlices(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var out []string
		for _, p := range strings.Split(s, ",") {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		if err := k.Set(key, out); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}
