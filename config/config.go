// ABOUTME: Client configuration: upstream URL, transport choice, agent catalog, server and logging settings.
// ABOUTME: Loaded from YAML over built-in defaults, then overridden by environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/mop/client"
)

// Transport names.
const (
	TransportStream     = "stream"
	TransportSequential = "sequential"
)

// ErrUnknownTransport is returned for a transport name other than stream or sequential.
var ErrUnknownTransport = errors.New("unknown transport")

// Environment variables consulted for the upstream URL, in priority order.
var BackURLEnv = []string{"MOP_BACK_URL", "VITE_BACK_URL"}

// Agent describes one pipeline agent for display.
type Agent struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Icon        string `yaml:"icon"`
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
	// Final marks the agent whose response is shown as the final insights
	// panel instead of a card.
	Final bool `yaml:"final,omitempty"`
}

// Title returns the display name, falling back to the ID.
func (a Agent) Title() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// Config is the full client configuration.
type Config struct {
	BackURL   string        `yaml:"back_url"`
	Transport string        `yaml:"transport"`
	Iteration int           `yaml:"iteration"`
	Agents    []Agent       `yaml:"agents"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	MaxLog    int           `yaml:"max_log"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// DefaultAgents is the catalog of the standard pipeline.
func DefaultAgents() []Agent {
	return []Agent{
		{ID: "analysis", Name: "Analysis Agent", Icon: "🔍", Color: "#6366f1",
			Description: "Understanding the problem, breaking it down into sub-problems, and building a thinking plan"},
		{ID: "research", Name: "Research Agent", Icon: "📚", Color: "#10b981",
			Description: "Gathering relevant knowledge, existing information, professional assumptions, and theoretical insights"},
		{ID: "critic", Name: "Critic Agent", Icon: "⚖️", Color: "#ef4444",
			Description: "Critically evaluating the solution, identifying weaknesses, contradictions, false assumptions, and risks"},
		{ID: "monitor", Name: "Monitor Agent", Icon: "👁️", Color: "#3b82f6",
			Description: "Supervising the thinking process, identifying loops or deviations, deciding if another iteration is needed"},
		{ID: "ratings", Name: "Ratings Agent", Icon: "⭐", Color: "#f59e0b",
			Description: "Scoring the candidate solution against the problem's criteria"},
		{ID: "summary", Name: "Final Insights & Principles", Icon: "✨", Color: "#8b5cf6",
			Description: "Distilling the run into final insights and principles", Final: true},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.BackURL = client.DefaultBaseURL
	c.Transport = TransportStream
	c.Iteration = 1
	c.Agents = DefaultAgents()
	c.CacheTTL = 10 * time.Minute
	c.MaxLog = 200
	c.Server.Addr = "127.0.0.1:2390"
	c.Log.Level = "info"
	return c
}

// Load reads the YAML file at path over the defaults. An empty path uses
// DefaultPath when that file exists, and the defaults alone otherwise.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = DefaultAgents()
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for _, key := range BackURLEnv {
		if v := getenv(key); v != "" {
			c.BackURL = v
			break
		}
	}
	if v := getenv("MOP_TRANSPORT"); v != "" {
		c.Transport = v
	}
	if v := getenv("MOP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Normalize cleans derived values; call after all overrides.
func (c *Config) Normalize() {
	c.BackURL = client.CleanBaseURL(c.BackURL)
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStream, TransportSequential:
	default:
		return fmt.Errorf("%w %q (want %s or %s)", ErrUnknownTransport, c.Transport, TransportStream, TransportSequential)
	}
	if c.Iteration < 1 {
		return fmt.Errorf("iteration must be at least 1, got %d", c.Iteration)
	}
	seen := make(map[string]bool, len(c.Agents))
	finals := 0
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent %d has no id", i)
		}
		if a.ID == "system" {
			return fmt.Errorf("agent id %q is reserved", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Final {
			finals++
		}
	}
	if finals > 1 {
		return fmt.Errorf("at most one final agent allowed, got %d", finals)
	}
	return nil
}

// CardAgents returns the IDs rendered as cards, in catalog order.
func (c Config) CardAgents() []string {
	var out []string
	for _, a := range c.Agents {
		if !a.Final {
			out = append(out, a.ID)
		}
	}
	return out
}

// PipelineAgents returns every agent ID in catalog order, the final one included.
func (c Config) PipelineAgents() []string {
	out := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		out[i] = a.ID
	}
	return out
}

// FinalAgent returns the ID of the final insights agent, or "".
func (c Config) FinalAgent() string {
	for _, a := range c.Agents {
		if a.Final {
			return a.ID
		}
	}
	return ""
}

// Agent looks up a catalog entry. Unknown IDs get a bare entry.
func (c Config) Agent(id string) Agent {
	for _, a := range c.Agents {
		if a.ID == id {
			return a
		}
	}
	return Agent{ID: id}
}
