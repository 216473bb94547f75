package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/ecrituria/schema"
)

// Config is the top-level client configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	Server        ServerConfig   `mapstructure:"server" yaml:"server"`
	Project       string         `mapstructure:"project" yaml:"project"`
	Model         string         `mapstructure:"model" yaml:"model"`
	Chat          ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Progress      ProgressConfig `mapstructure:"progress" yaml:"progress"`
	Graph         GraphConfig    `mapstructure:"graph" yaml:"graph"`
	Upload        UploadConfig   `mapstructure:"upload" yaml:"upload"`
	Cache         CacheConfig    `mapstructure:"cache" yaml:"cache"`
	UI            UIConfig       `mapstructure:"ui" yaml:"ui"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServerConfig locates the backend.
type ServerConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ChatConfig holds chat toggles.
type ChatConfig struct {
	UseGraph        bool `mapstructure:"use_graph" yaml:"use_graph"`
	UseAgents       bool `mapstructure:"use_agents" yaml:"use_agents"`
	LongWaitSeconds int  `mapstructure:"long_wait_seconds" yaml:"long_wait_seconds"`
	TranscriptMax   int  `mapstructure:"transcript_max" yaml:"transcript_max"`
}

// ProgressConfig tunes the simulated progress ticker.
type ProgressConfig struct {
	TickMS      int `mapstructure:"tick_ms" yaml:"tick_ms"`
	Floor       int `mapstructure:"floor" yaml:"floor"`
	Step        int `mapstructure:"step" yaml:"step"`
	Ceiling     int `mapstructure:"ceiling" yaml:"ceiling"`
	HideAfterMS int `mapstructure:"hide_after_ms" yaml:"hide_after_ms"`
}

// GraphConfig tunes graph job polling.
type GraphConfig struct {
	PollIntervalMS int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	MaxPolls       int `mapstructure:"max_polls" yaml:"max_polls"`
	MaxPollErrors  int `mapstructure:"max_poll_errors" yaml:"max_poll_errors"`
}

// UploadConfig controls the upload pipeline.
type UploadConfig struct {
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Reindex    bool     `mapstructure:"reindex" yaml:"reindex"`
	Folder     string   `mapstructure:"folder" yaml:"folder"`
	DebounceMS int      `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// CacheConfig controls the listing cache of the API client.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
}

// UIConfig controls terminal rendering.
type UIConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
	Width int    `mapstructure:"width" yaml:"width"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Server: ServerConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 300,
		},
		Project: "",
		Model:   "",
		Chat: ChatConfig{
			UseGraph:        true,
			UseAgents:       false,
			LongWaitSeconds: 25,
			TranscriptMax:   500,
		},
		Progress: ProgressConfig{
			TickMS:      1500,
			Floor:       5,
			Step:        5,
			Ceiling:     90,
			HideAfterMS: 1200,
		},
		Graph: GraphConfig{
			PollIntervalMS: 1500,
			MaxPolls:       200,
			MaxPollErrors:  40,
		},
		Upload: UploadConfig{
			Extensions: []string{".md", ".txt"},
			Reindex:    true,
			Folder:     "chapitres",
			DebounceMS: 500,
		},
		Cache: CacheConfig{
			TTLSeconds: 30,
		},
		UI: UIConfig{
			Theme: string(schema.DefaultTheme),
			Width: 0,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ecrituria", "config.yaml"), nil
}

// Timeout is the per-request HTTP timeout.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LongWait is the delay before the chat "still working" hint.
func (c ChatConfig) LongWait() time.Duration {
	return time.Duration(c.LongWaitSeconds) * time.Second
}

// Tick is the simulated progress interval.
func (c ProgressConfig) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// HideAfter is the auto-hide delay after success.
func (c ProgressConfig) HideAfter() time.Duration {
	return time.Duration(c.HideAfterMS) * time.Millisecond
}

// PollInterval is the graph status polling interval.
func (c GraphConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Debounce is the quiet period of the watch-folder mode.
func (c UploadConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// TTL is the listing cache lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
