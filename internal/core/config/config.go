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
)

type QueryCfg struct {
	ClickTolerancePx float64
	BoxSizePx        float64
	BoxMinZoom       int
	PageSize         int
	MaxPages         int
	Concurrency      int
}

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	GeoServerURL    string
	// UpstreamTimeout bounds each WFS or legend request.
	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration
	// MapBackend is read once at startup and never changes for the process.
	MapBackend      string
	WorkingCRS      string
	LayerCatalog    string
	SessionMax      int
	LegendCache     int
	Query           QueryCfg
	Cache           CacheCfg
	Events          EventsCfg
	Metrics         MetricsCfg
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	return Config{
		Addr:            getenv("ADDR", ":8090"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		GeoServerURL:    getenv("GEOSERVER_URL", "http://localhost:8080/geoserver"),
		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		RequestTimeout:  getduration("REQUEST_TIMEOUT", time.Minute),
		MapBackend:      strings.ToLower(getenv("MAP_BACKEND", "engine")),
		WorkingCRS:      getenv("WORKING_CRS", "EPSG:3857"),
		LayerCatalog:    getenv("LAYER_CATALOG", "layers.toml"),
		SessionMax:      getint("SESSION_MAX", 256),
		LegendCache:     getint("LEGEND_CACHE_SIZE", 256),
		Query: QueryCfg{
			ClickTolerancePx: getfloat("CLICK_TOLERANCE_PX", 10),
			BoxSizePx:        getfloat("BOX_SELECT_SIZE_PX", 200),
			BoxMinZoom:       getint("BOX_SELECT_MIN_ZOOM", 9),
			PageSize:         getint("QUERY_PAGE_SIZE", 500),
			MaxPages:         getint("QUERY_MAX_PAGES", 10),
			Concurrency:      getint("QUERY_CONCURRENCY", 4),
		},
		Cache: CacheCfg{
			Enabled:   getbool("QUERY_CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("QUERY_CACHE_TTL", 5*time.Minute),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("EVENTS_TOPIC", "selection-events"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// Brokers splits a comma separated broker list.
func Brokers(s string) []string {
	var out []string
	for b := range strings.SplitSeq(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
