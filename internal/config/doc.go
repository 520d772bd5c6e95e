// Package config handles configuration loading, saving, and schema definition.
package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level officebot configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Provider ProviderConfig `json:"provider"`
	Store    StoreConfig    `json:"store"`
	Redis    RedisConfig    `json:"redis"`
	Server   ServerConfig   `json:"server"`
	Timeline TimelineConfig `json:"timeline"`

	// Roster is the agents.yaml path. Missing file means the built-in roster.
	Roster   string   `json:"roster,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Operator string   `json:"operator,omitempty"`
}

// AgentConfig holds the loop settings shared by every agent.
type AgentConfig struct {
	Model         string   `json:"model,omitempty" split_words:"true"`
	MaxTokens     int      `json:"maxTokens,omitempty" split_words:"true"`
	Temperature   float64  `json:"temperature,omitempty" split_words:"true"`
	PollInterval  Duration `json:"pollInterval,omitempty" split_words:"true"`
	Cooldown      Duration `json:"cooldown,omitempty" split_words:"true"`
	TurnDelay     Duration `json:"turnDelay,omitempty" split_words:"true"`
	ErrorBackoff  Duration `json:"errorBackoff,omitempty" split_words:"true"`
	MaxFailures   int      `json:"maxFailures,omitempty" split_words:"true"`
	MemoryWindow  int      `json:"memoryWindow,omitempty" split_words:"true"`
	ActivityLimit int      `json:"activityLimit,omitempty" split_words:"true"`
}

// ProviderConfig selects the OpenAI-compatible endpoint.
type ProviderConfig struct {
	Name       string   `json:"name,omitempty" split_words:"true"`
	APIKey     string   `json:"apiKey,omitempty" split_words:"true"`
	APIBase    string   `json:"apiBase,omitempty" split_words:"true"`
	Timeout    Duration `json:"timeout,omitempty" split_words:"true"`
	MaxRetries int      `json:"maxRetries,omitempty" split_words:"true"`
}

// StoreConfig selects the employee store backend ("file" or "redis").
type StoreConfig struct {
	Backend  string `json:"backend,omitempty" split_words:"true"`
	Path     string `json:"path,omitempty" split_words:"true"`
	RedisKey string `json:"redisKey,omitempty" split_words:"true"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL      string `json:"url,omitempty" split_words:"true"`
	Password string `json:"password,omitempty" split_words:"true"`
	DB       int    `json:"db,omitempty" split_words:"true"`
}

// ServerConfig holds the HTTP/WebSocket front-end settings.
type ServerConfig struct {
	Enabled bool   `json:"enabled" split_words:"true"`
	Host    string `json:"host,omitempty" split_words:"true"`
	Port    int    `json:"port,omitempty" split_words:"true"`
	APIKey  string `json:"apiKey,omitempty" split_words:"true"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TimelineConfig holds the SQLite audit journal settings.
type TimelineConfig struct {
	Enabled bool   `json:"enabled" split_words:"true"`
	Path    string `json:"path,omitempty" split_words:"true"`
}

// DefaultChannels are created at startup.
var DefaultChannels = []string{"General", "HR", "Management", "Tech"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			MaxTokens:     512,
			Temperature:   0.7,
			PollInterval:  Duration(2 * time.Second),
			Cooldown:      Duration(2 * time.Second),
			ErrorBackoff:  Duration(5 * time.Second),
			MaxFailures:   5,
			MemoryWindow:  20,
			ActivityLimit: 200,
		},
		Provider: ProviderConfig{
			Name:       "ollama",
			Timeout:    Duration(60 * time.Second),
			MaxRetries: 2,
		},
		Store: StoreConfig{
			Backend:  "file",
			Path:     "employees.json",
			RedisKey: "officebot:employees",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
		Timeline: TimelineConfig{
			Enabled: true,
			Path:    "timeline.db",
		},
		Roster:   "agents.yaml",
		Channels: append([]string(nil), DefaultChannels...),
		Operator: "@operator",
	}
}

// Duration is a time.Duration that reads as "2s" or as a number of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON writes the Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "1m30s" or 90 (seconds).
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.Decode(s)
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration: want string or seconds, got %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Decode implements envconfig.Decoder with the same rules as UnmarshalJSON.
func (d *Duration) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*d = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("duration %q: %w", value, err)
	}
	*d = Duration(v)
	return nil
}
