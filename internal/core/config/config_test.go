package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "MAP_BACKEND", "QUERY_PAGE_SIZE", "QUERY_CACHE_TTL", "CLICK_TOLERANCE_PX", "UPSTREAM_TIMEOUT", "REQUEST_TIMEOUT"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Addr != ":8090" || c.MapBackend != "engine" || c.WorkingCRS != "EPSG:3857" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Query.PageSize != 500 || c.Query.BoxMinZoom != 9 || c.Query.ClickTolerancePx != 10 {
		t.Fatalf("query defaults: %+v", c.Query)
	}
	if c.Cache.TTL != 5*time.Minute || c.Events.Topic != "selection-events" {
		t.Fatalf("cache/events defaults: %+v %+v", c.Cache, c.Events)
	}
	if c.UpstreamTimeout != 30*time.Second || c.RequestTimeout != time.Minute {
		t.Fatalf("timeouts: upstream=%v request=%v", c.UpstreamTimeout, c.RequestTimeout)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MAP_BACKEND", "Vector")
	t.Setenv("QUERY_PAGE_SIZE", "50")
	t.Setenv("QUERY_CACHE_ENABLED", "yes")
	t.Setenv("QUERY_CACHE_TTL", "90s")
	t.Setenv("CLICK_TOLERANCE_PX", "7.5")
	t.Setenv("BOX_SELECT_MIN_ZOOM", "not-a-number")

	c := FromEnv()
	if c.MapBackend != "vector" {
		t.Fatalf("backend=%q", c.MapBackend)
	}
	if c.Query.PageSize != 50 || c.Query.ClickTolerancePx != 7.5 || c.Query.BoxMinZoom != 9 {
		t.Fatalf("query=%+v", c.Query)
	}
	if !c.Cache.Enabled || c.Cache.TTL != 90*time.Second {
		t.Fatalf("cache=%+v", c.Cache)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "test.env")
	if err := os.WriteFile(p, []byte("GEOVIEW_TEST_ONLY=1\nSESSION_MAX=12\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SESSION_MAX", "")
	os.Unsetenv("SESSION_MAX")
	t.Cleanup(func() {
		os.Unsetenv("GEOVIEW_TEST_ONLY")
		os.Unsetenv("SESSION_MAX")
	})

	c, err := Load(p, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.SessionMax != 12 {
		t.Fatalf("session max=%d", c.SessionMax)
	}
}

func TestBrokers(t *testing.T) {
	got := Brokers(" a:9092, ,b:9092")
	if !slices.Equal(got, []string{"a:9092", "b:9092"}) {
		t.Fatalf("brokers=%v", got)
	}
}
