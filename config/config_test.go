// ABOUTME: Tests for configuration loading, environment overrides, validation and XDG paths.
// ABOUTME: Uses t.TempDir and t.Setenv so no real user configuration is touched.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if c.BackURL != "http://127.0.0.1:8000" {
		t.Errorf("unexpected back URL %q", c.BackURL)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	want := []string{"analysis", "research", "critic", "monitor", "ratings"}
	if got := c.CardAgents(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected cards %v, got %v", want, got)
	}
	if c.FinalAgent() != "summary" {
		t.Errorf("expected summary as final agent, got %q", c.FinalAgent())
	}
	if len(c.PipelineAgents()) != 6 {
		t.Errorf("expected 6 pipeline agents, got %v", c.PipelineAgents())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `back_url: http://analysis.local:9000/
transport: sequential
cache_ttl: 30s
agents:
  - id: scout
    name: Scout
  - id: wrapup
    final: true
server:
  addr: 0.0.0.0:8080
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c.Normalize()
	if c.BackURL != "http://analysis.local:9000" {
		t.Errorf("expected trailing slash stripped, got %q", c.BackURL)
	}
	if c.Transport != TransportSequential {
		t.Errorf("unexpected transport %q", c.Transport)
	}
	if c.CacheTTL != 30*time.Second {
		t.Errorf("unexpected ttl %v", c.CacheTTL)
	}
	if c.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("unexpected addr %q", c.Server.Addr)
	}
	if got := c.CardAgents(); !reflect.DeepEqual(got, []string{"scout"}) {
		t.Errorf("unexpected cards %v", got)
	}
	if c.Agent("scout").Title() != "Scout" || c.Agent("wrapup").Title() != "wrapup" {
		t.Error("unexpected agent titles")
	}
	if c.Log.Level != "info" {
		t.Errorf("expected default log level kept, got %q", c.Log.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadDefaultPathAbsent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	c, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if c.Transport != TransportStream {
		t.Errorf("expected default transport, got %q", c.Transport)
	}
}

func TestLoadDefaultPathPresent(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "mop"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "mop", "config.yaml"), []byte("iteration: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Iteration != 3 {
		t.Errorf("expected iteration 3, got %d", c.Iteration)
	}
	if len(c.Agents) != len(DefaultAgents()) {
		t.Error("expected default catalog when none configured")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("agents: [unclosed"), 0o644)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"VITE_BACK_URL": "http://vite:1",
		"MOP_LOG_LEVEL": "debug",
	}
	c := Default()
	c.ApplyEnv(func(k string) string { return env[k] })
	if c.BackURL != "http://vite:1" || c.Log.Level != "debug" {
		t.Errorf("unexpected config %+v", c)
	}

	env["MOP_BACK_URL"] = "http://mop:2"
	c.ApplyEnv(func(k string) string { return env[k] })
	if c.BackURL != "http://mop:2" {
		t.Errorf("expected MOP_BACK_URL to take priority, got %q", c.BackURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad transport", func(c *Config) { c.Transport = "carrier-pigeon" }, "unknown transport"},
		{"zero iteration", func(c *Config) { c.Iteration = 0 }, "iteration"},
		{"empty id", func(c *Config) { c.Agents = []Agent{{Name: "x"}} }, "no id"},
		{"reserved id", func(c *Config) { c.Agents = []Agent{{ID: "system"}} }, "reserved"},
		{"duplicate", func(c *Config) { c.Agents = []Agent{{ID: "a"}, {ID: "a"}} }, "duplicate"},
		{"two finals", func(c *Config) { c.Agents = []Agent{{ID: "a", Final: true}, {ID: "b", Final: true}} }, "final"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	c := Default()
	c.Transport = "nope"
	if !errors.Is(c.Validate(), ErrUnknownTransport) {
		t.Error("expected ErrUnknownTransport sentinel")
	}
}

func TestPathsHonorXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_STATE_HOME", "/state")

	if p, _ := DefaultPath(); p != filepath.Join("/cfg", "mop", "config.yaml") {
		t.Errorf("unexpected config path %q", p)
	}
	if p, _ := DefaultLogFile(); p != filepath.Join("/state", "mop", "mop.log") {
		t.Errorf("unexpected log path %q", p)
	}
}

func TestPathsFallBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")

	if d, _ := ConfigDir(); d != filepath.Join(home, ".config", "mop") {
		t.Errorf("unexpected config dir %q", d)
	}
	if d, _ := StateDir(); d != filepath.Join(home, ".local", "state", "mop") {
		t.Errorf("unexpected state dir %q", d)
	}
}
