package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/ecrituria/schema"
)

// EnvPrefix prefixes environment overrides (ECRITURIA_SERVER_BASE_URL, ...).
const EnvPrefix = "ECRITURIA"

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("server.base_url", cfg.Server.BaseURL)
	v.SetDefault("server.timeout_seconds", cfg.Server.TimeoutSeconds)
	v.SetDefault("project", cfg.Project)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("chat.use_graph", cfg.Chat.UseGraph)
	v.SetDefault("chat.use_agents", cfg.Chat.UseAgents)
	v.SetDefault("chat.long_wait_seconds", cfg.Chat.LongWaitSeconds)
	v.SetDefault("chat.transcript_max", cfg.Chat.TranscriptMax)
	v.SetDefault("progress.tick_ms", cfg.Progress.TickMS)
	v.SetDefault("progress.floor", cfg.Progress.Floor)
	v.SetDefault("progress.step", cfg.Progress.Step)
	v.SetDefault("progress.ceiling", cfg.Progress.Ceiling)
	v.SetDefault("progress.hide_after_ms", cfg.Progress.HideAfterMS)
	v.SetDefault("graph.poll_interval_ms", cfg.Graph.PollIntervalMS)
	v.SetDefault("graph.max_polls", cfg.Graph.MaxPolls)
	v.SetDefault("graph.max_poll_errors", cfg.Graph.MaxPollErrors)
	v.SetDefault("upload.extensions", cfg.Upload.Extensions)
	v.SetDefault("upload.reindex", cfg.Upload.Reindex)
	v.SetDefault("upload.folder", cfg.Upload.Folder)
	v.SetDefault("upload.debounce_ms", cfg.Upload.DebounceMS)
	v.SetDefault("cache.ttl_seconds", cfg.Cache.TTLSeconds)
	v.SetDefault("ui.theme", cfg.UI.Theme)
	v.SetDefault("ui.width", cfg.UI.Width)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Server.BaseURL = strings.TrimRight(expandEnv(strings.TrimSpace(cfg.Server.BaseURL)), "/")
	cfg.Upload.Extensions = normalizeExtensions(cfg.Upload.Extensions)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func validate(cfg Config) error {
	parsed, err := url.Parse(cfg.Server.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("server.base_url must include scheme and host (e.g. http://localhost:8000)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server.base_url scheme must be http or https")
	}
	if cfg.Server.TimeoutSeconds < 0 {
		return fmt.Errorf("server.timeout_seconds must not be negative")
	}
	p := cfg.Progress
	if p.TickMS <= 0 || p.Step <= 0 {
		return fmt.Errorf("progress.tick_ms and progress.step must be positive")
	}
	if p.Floor <= 0 || p.Floor > p.Ceiling || p.Ceiling >= 100 {
		return fmt.Errorf("progress must satisfy 0 < floor <= ceiling < 100")
	}
	if cfg.Graph.PollIntervalMS <= 0 || cfg.Graph.MaxPolls <= 0 {
		return fmt.Errorf("graph.poll_interval_ms and graph.max_polls must be positive")
	}
	if len(cfg.Upload.Extensions) == 0 {
		return fmt.Errorf("upload.extensions must list at least one extension")
	}
	if cfg.Project != "" {
		if _, err := schema.NormalizeProjectName(cfg.Project); err != nil {
			return fmt.Errorf("project: %w", err)
		}
	}
	if _, ok := schema.NormalizeThemeName(cfg.UI.Theme); !ok {
		return fmt.Errorf("unsupported ui.theme %q", cfg.UI.Theme)
	}
	return nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := map[string]bool{}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if seen[ext] {
			continue
		}
		seen[ext] = true
		out = append(out, ext)
	}
	return out
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
