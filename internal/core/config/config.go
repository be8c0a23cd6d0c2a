// Package config loads service settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
	LRUSize   int
	OpTimeout time.Duration
}

type ExportEventsCfg struct {
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
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	DataDir        string
	AOIFile        string
	TimeRangeFile  string
	ImageryURL     string
	ImageryToken   string
	ImageryTimeout time.Duration
	Strategy       string
	ItemSizeMB     float64
	H3Res          int
	Cache          CacheCfg
	ExportEvents   ExportEventsCfg
	Metrics        MetricsCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 7)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	itemSize := getfloat("ITEM_SIZE_MB", 2.0)
	if itemSize < 0 {
		itemSize = 2.0
	}

	dataDir := getenv("DATA_DIR", "data")

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		DataDir:        dataDir,
		AOIFile:        getenv("AOI_FILE", filepath.Join(dataDir, "areas.geojson")),
		TimeRangeFile:  getenv("TIMERANGE_FILE", filepath.Join(dataDir, "timeranges.json")),
		ImageryURL:     getenv("IMAGERY_URL", "http://localhost:8080"),
		ImageryToken:   getenv("IMAGERY_TOKEN", ""),
		ImageryTimeout: getduration("IMAGERY_TIMEOUT", 60*time.Second),
		Strategy:       getenv("COMPOSITE_STRATEGY", "single-vv-mean/v1"),
		ItemSizeMB:     itemSize,
		H3Res:          res,
		Cache: CacheCfg{
			Enabled:   getbool("CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", ""),
			TTL:       getduration("CACHE_TTL", 10*time.Minute),
			LRUSize:   getint("CACHE_LRU_SIZE", 256),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		ExportEvents: ExportEventsCfg{
			Enabled: getbool("EXPORT_EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("EXPORT_TOPIC", "sar-export-jobs"),
			Queue:   getint("EXPORT_EVENTS_QUEUE", 256),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// SharesListener reports whether metrics are served on the API listener
// rather than a dedicated one.
func (c MetricsCfg) SharesListener(apiAddr string) bool {
	return c.Addr == apiAddr
}

// BrokerList splits a comma separated broker list.
func (c ExportEventsCfg) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.Brokers, ",") {
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
