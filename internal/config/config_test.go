package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// copyTestdata copies a testdata file into a temp dir so tests can modify it.
func copyTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read testdata %s: %v", name, err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Load Tests ---

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("testdata", "config.yml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if len(cfg.Routes) != 2 || cfg.Routes[1].Origin != "DMK" {
		t.Errorf("Routes = %+v", cfg.Routes)
	}

	p, err := cfg.ActiveProfile()
	if err != nil {
		t.Fatalf("ActiveProfile() error = %v", err)
	}
	if p.Channel != ChannelPhysical || p.Origin.Mode != OriginFixed || p.Origin.Y != 85 {
		t.Errorf("profile = %+v", p)
	}
	if p.Settle != 4*time.Second {
		t.Errorf("Settle = %v, want 4s", p.Settle)
	}

	if cfg.Poller.MaxAttempts != 8 || cfg.Poller.Interval != 3*time.Second {
		t.Errorf("Poller = %+v", cfg.Poller)
	}

	// Sections only partly present keep their defaults.
	if cfg.Challenge.Resolver.Timeout != 10*time.Second {
		t.Errorf("Resolver.Timeout = %v", cfg.Challenge.Resolver.Timeout)
	}
	if cfg.Challenge.Resolver.PollInterval != time.Second {
		t.Errorf("Resolver.PollInterval = %v, want default 1s", cfg.Challenge.Resolver.PollInterval)
	}
	if cfg.Search.Currency != "THB" {
		t.Errorf("Currency = %q", cfg.Search.Currency)
	}

	// Built-in profiles stay available next to the file's own.
	if _, err := cfg.LookupProfile("passive"); err != nil {
		t.Errorf("LookupProfile(passive) error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Routes = []fares.Route{{Origin: "BKK", Destination: "HKT", Date: "15/03/2026"}}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no routes", func(c *Config) { c.Routes = nil }, "Routes is required"},
		{"lower-case code", func(c *Config) { c.Routes[0].Origin = "bkk" }, "Routes[0].Origin must be upper case"},
		{"bad date", func(c *Config) { c.Routes[0].Date = "2026-03-15" }, "Routes[0].Date must match"},
		{"unknown profile", func(c *Config) { c.Profile = "turbo" }, `profile "turbo" is not defined`},
		{"bad channel", func(c *Config) {
			p := c.Profiles["virtual"]
			p.Channel = "telepathy"
			c.Profiles["virtual"] = p
		}, "Channel must be one of"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every morning" }, "must be a valid cron expression"},
		{"template", func(c *Config) { c.Search.URLTemplate = "https://example.com" }, "must contain {origin}"},
		{"refresh after last", func(c *Config) { c.Poller.RefreshAt = 20 }, "refresh_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSearch_URL(t *testing.T) {
	s := Default().Search
	got := s.URL(fares.Route{Origin: "BKK", Destination: "HKT", Date: "15/03/2026"})

	for _, want := range []string{"origin=BKK", "destination=HKT", "departDate=15%2F03%2F2026", "currency=THB"} {
		if !strings.Contains(got, want) {
			t.Errorf("URL %q missing %q", got, want)
		}
	}
}

func TestBuiltinProfiles(t *testing.T) {
	profiles := BuiltinProfiles()
	for _, name := range []string{"passive", "headed", "virtual", "physical"} {
		if _, ok := profiles[name]; !ok {
			t.Errorf("missing built-in profile %q", name)
		}
	}
	if profiles["passive"].Channel != ChannelNone || !profiles["passive"].Headless {
		t.Error("passive should be headless without an input channel")
	}
	if profiles["physical"].Headless {
		t.Error("physical needs a visible window")
	}

	// Profiles must not share strategy slices.
	profiles["virtual"].Strategies[0] = "changed"
	if profiles["physical"].Strategies[0] == "changed" {
		t.Error("profiles share a strategies slice")
	}
}

// --- Schedule Tests ---

func TestLocalCron(t *testing.T) {
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		hour int
		days string
		loc  *time.Location
		want string
	}{
		{8, "*", bangkok, "0 1 * * *"},
		{20, "", bangkok, "0 13 * * *"},
		{3, "1,3,5", bangkok, "0 20 * * 1,3,5"},
		{0, "*", time.UTC, "0 0 * * *"},
		{9, "*", kolkata, "30 3 * * *"},
	}
	for _, tt := range tests {
		got, err := LocalCron(tt.hour, tt.days, tt.loc, now)
		if err != nil {
			t.Fatalf("LocalCron(%d) error = %v", tt.hour, err)
		}
		if got != tt.want {
			t.Errorf("LocalCron(%d, %q, %s) = %q, want %q", tt.hour, tt.days, tt.loc, got, tt.want)
		}
	}

	if _, err := LocalCron(24, "*", bangkok, now); err == nil {
		t.Error("expected error for hour 24")
	}
	if _, err := LocalCron(8, "funday", bangkok, now); err == nil {
		t.Error("expected error for invalid days")
	}
}

func TestSetScheduleCron_KeepsComments(t *testing.T) {
	path := copyTestdata(t, "config.yml")

	if err := SetScheduleCron(path, "0 13 * * 1,3,5"); err != nil {
		t.Fatalf("SetScheduleCron() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	s := string(data)
	if !strings.Contains(s, "cron: '0 13 * * 1,3,5'") {
		t.Errorf("cron not updated:\n%s", s)
	}
	if !strings.Contains(s, "# Routes to watch") || !strings.Contains(s, "# Times are UTC.") {
		t.Errorf("comments lost:\n%s", s)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() after update error = %v", err)
	}
	if cfg.Schedule.Cron != "0 13 * * 1,3,5" {
		t.Errorf("Schedule.Cron = %q", cfg.Schedule.Cron)
	}
}

func TestSetScheduleCron_AddsSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("profile: passive\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := SetScheduleCron(path, "0 1 * * *"); err != nil {
		t.Fatalf("SetScheduleCron() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "schedule:\n  cron: '0 1 * * *'") {
		t.Errorf("schedule section not added:\n%s", data)
	}
}

func TestSetWorkflowCron(t *testing.T) {
	path := copyTestdata(t, "workflow.yml")

	if err := SetWorkflowCron(path, "0 13 * * *"); err != nil {
		t.Fatalf("SetWorkflowCron() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	s := string(data)
	if !strings.Contains(s, "\n    - cron: '0 13 * * *'\n") {
		t.Errorf("cron line not replaced with its indentation:\n%s", s)
	}
	if !strings.Contains(s, "# daily") || !strings.Contains(s, "workflow_dispatch:") {
		t.Error("other lines should be untouched")
	}

	empty := filepath.Join(t.TempDir(), "wf.yml")
	_ = os.WriteFile(empty, []byte("name: x\n"), 0o644)
	if err := SetWorkflowCron(empty, "0 1 * * *"); err == nil {
		t.Error("expected error when no cron entry exists")
	}
}
