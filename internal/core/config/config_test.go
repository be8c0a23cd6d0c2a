package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/sar")
	cfg := FromEnv()

	if cfg.AOIFile != filepath.Join("/tmp/sar", "areas.geojson") {
		t.Fatalf("AOIFile=%q", cfg.AOIFile)
	}
	if cfg.TimeRangeFile != filepath.Join("/tmp/sar", "timeranges.json") {
		t.Fatalf("TimeRangeFile=%q", cfg.TimeRangeFile)
	}
	if cfg.Strategy != "single-vv-mean/v1" {
		t.Fatalf("Strategy=%q", cfg.Strategy)
	}
	if cfg.ItemSizeMB != 2.0 {
		t.Fatalf("ItemSizeMB=%v want 2", cfg.ItemSizeMB)
	}
	if cfg.Cache.Enabled || cfg.ExportEvents.Enabled || cfg.Metrics.Enabled {
		t.Fatalf("optional subsystems should default off: %+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ITEM_SIZE_MB", "0.5")
	t.Setenv("H3_RES", "42")
	t.Setenv("CACHE_ENABLED", "yes")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("COMPOSITE_STRATEGY", "directional-max/v2")

	cfg := FromEnv()
	if cfg.ItemSizeMB != 0.5 {
		t.Fatalf("ItemSizeMB=%v want 0.5", cfg.ItemSizeMB)
	}
	if cfg.H3Res != 15 {
		t.Fatalf("H3Res=%d want clamp to 15", cfg.H3Res)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 90*time.Second {
		t.Fatalf("cache cfg=%+v", cfg.Cache)
	}
	if got := cfg.ExportEvents.BrokerList(); len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("brokers=%v", got)
	}
	if cfg.Strategy != "directional-max/v2" {
		t.Fatalf("Strategy=%q", cfg.Strategy)
	}
}

func TestMetricsCfg_SharesListener(t *testing.T) {
	m := MetricsCfg{Enabled: true, Addr: ":8090"}
	if !m.SharesListener(":8090") {
		t.Fatalf("same address must share the API listener")
	}
	if m.SharesListener(":8091") {
		t.Fatalf("different address must get its own listener")
	}
}
