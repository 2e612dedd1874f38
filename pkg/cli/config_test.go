package cli

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/lincolnyu/qsharp-sub003/pkg/stress"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ringbench", "config.yaml")
	cfg, err := LoadConfigWithPath("ringbench", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}
	return cfg
}

func TestLoadConfigWithPath_NewConfig(t *testing.T) {
	cfg := newTestConfig(t)

	if cfg.AppName != "ringbench" {
		t.Errorf("AppName = %q, want %q", cfg.AppName, "ringbench")
	}
	if cfg.Profiles == nil {
		t.Error("Profiles should be initialized")
	}
	if _, err := os.Stat(cfg.Path()); err != nil {
		t.Errorf("config file should be created: %v", err)
	}
	if filepath.Base(cfg.Dir()) != "ringbench" {
		t.Errorf("Dir() = %q", cfg.Dir())
	}
}

func TestConfig_AddProfile(t *testing.T) {
	cfg := newTestConfig(t)

	if err := cfg.AddProfile("fast", NewProfile("")); err != nil {
		t.Fatalf("AddProfile error: %v", err)
	}
	if cfg.Profiles["fast"].Name != "fast" {
		t.Errorf("profile name = %q, want %q", cfg.Profiles["fast"].Name, "fast")
	}
	if cfg.CurrentProfile != "fast" {
		t.Errorf("first profile should become current, got %q", cfg.CurrentProfile)
	}

	if err := cfg.AddProfile("slow", NewProfile("")); err != nil {
		t.Fatalf("AddProfile error: %v", err)
	}
	if cfg.CurrentProfile != "fast" {
		t.Errorf("CurrentProfile = %q, want %q", cfg.CurrentProfile, "fast")
	}
}

func TestConfig_DeleteProfile(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AddProfile("a", NewProfile(""))

	if err := cfg.DeleteProfile("a"); err != nil {
		t.Fatalf("DeleteProfile error: %v", err)
	}
	if _, ok := cfg.Profiles["a"]; ok {
		t.Error("profile should be deleted")
	}
	if cfg.CurrentProfile != "" {
		t.Errorf("CurrentProfile = %q, want empty", cfg.CurrentProfile)
	}

	if err := cfg.DeleteProfile("a"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("DeleteProfile(missing) = %v, want ErrProfileNotFound", err)
	}
}

func TestConfig_UseProfile(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.AddProfile("a", NewProfile(""))
	cfg.AddProfile("b", NewProfile(""))

	if err := cfg.UseProfile("b"); err != nil {
		t.Fatalf("UseProfile error: %v", err)
	}
	p, err := cfg.GetCurrentProfile()
	if err != nil {
		t.Fatalf("GetCurrentProfile error: %v", err)
	}
	if p.Name != "b" {
		t.Errorf("current = %q, want %q", p.Name, "b")
	}

	if err := cfg.UseProfile("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("UseProfile(missing) = %v, want ErrProfileNotFound", err)
	}
}

func TestConfig_ResolveProfile(t *testing.T) {
	cfg := newTestConfig(t)

	p, err := cfg.ResolveProfile("")
	if err != nil {
		t.Fatalf("ResolveProfile error: %v", err)
	}
	if p.Name != DefaultProfile || p.Scenario != stress.DefaultScenario() {
		t.Errorf("ResolveProfile with no profiles = %+v, want default", p)
	}

	if _, err := cfg.GetCurrentProfile(); !errors.Is(err, ErrNoCurrentProfile) {
		t.Errorf("GetCurrentProfile = %v, want ErrNoCurrentProfile", err)
	}

	custom := NewProfile("")
	custom.Scenario.Readers = 5
	cfg.AddProfile("custom", custom)
	cfg.AddProfile("other", NewProfile(""))

	p, _ = cfg.ResolveProfile("")
	if p.Name != "custom" {
		t.Errorf("ResolveProfile(\"\") = %q, want current", p.Name)
	}
	p, _ = cfg.ResolveProfile("other")
	if p.Name != "other" {
		t.Errorf("ResolveProfile(other) = %q", p.Name)
	}
	if _, err := cfg.ResolveProfile("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("ResolveProfile(missing) = %v, want ErrProfileNotFound", err)
	}
}

func TestConfig_ListProfiles(t *testing.T) {
	cfg := newTestConfig(t)
	for _, name := range []string{"c", "a", "b"} {
		cfg.AddProfile(name, NewProfile(""))
	}

	got := cfg.ListProfiles()
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("ListProfiles = %v", got)
	}
}

func TestConfig_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadConfigWithPath("ringbench", path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath error: %v", err)
	}

	p := NewProfile("")
	p.Scenario.Mode = stress.Hooky
	p.Scenario.Duration = 1500 * time.Millisecond
	p.Scenario.RTP = true
	p.Record = true
	p.MetricsAddr = ":9090"
	if err := cfg.AddProfile("rtp", p); err != nil {
		t.Fatalf("AddProfile error: %v", err)
	}

	loaded, err := LoadConfigWithPath("ringbench", path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if loaded.CurrentProfile != "rtp" {
		t.Errorf("CurrentProfile = %q, want %q", loaded.CurrentProfile, "rtp")
	}
	got, err := loaded.GetProfile("rtp")
	if err != nil {
		t.Fatalf("GetProfile error: %v", err)
	}
	if got.Scenario != p.Scenario {
		t.Errorf("scenario = %+v, want %+v", got.Scenario, p.Scenario)
	}
	if !got.Record || got.MetricsAddr != ":9090" || got.Name != "rtp" {
		t.Errorf("profile = %+v", got)
	}
}

func TestLoadConfigWithPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("profiles: [1, 2"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigWithPath("ringbench", path); err == nil {
		t.Error("expected parse error")
	}
}
