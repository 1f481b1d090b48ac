package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configTOMLFileName = "config.toml"

	DefaultHomePage       = "https://google.com"
	DefaultTypeIntervalMS = 50
)

type BrowserConfig struct {
	HomePage string `json:"home_page" toml:"home_page"`
}

type DesktopConfig struct {
	ScreenshotDir  string `json:"screenshot_dir" toml:"screenshot_dir"`
	TypeIntervalMS int    `json:"type_interval_ms" toml:"type_interval_ms"`
}

// AssistantConfig is the user-editable config.toml in the config dir.
type AssistantConfig struct {
	Browser BrowserConfig     `json:"browser" toml:"browser"`
	Desktop DesktopConfig     `json:"desktop" toml:"desktop"`
	Apps    map[string]string `json:"apps" toml:"apps"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) LoadOrInit() (AssistantConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return AssistantConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg AssistantConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return AssistantConfig{}, err
		}
		return s.normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return AssistantConfig{}, err
	}

	cfg := s.normalizeConfig(AssistantConfig{})
	if err := s.Save(cfg); err != nil {
		return AssistantConfig{}, err
	}
	return cfg, nil
}

// Save normalizes cfg and replaces config.toml atomically.
func (s *ConfigStore) Save(cfg AssistantConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), s.normalizeConfig(cfg))
}

func (s *ConfigStore) normalizeConfig(cfg AssistantConfig) AssistantConfig {
	cfg.Browser.HomePage = strings.TrimSpace(cfg.Browser.HomePage)
	if cfg.Browser.HomePage == "" {
		cfg.Browser.HomePage = DefaultHomePage
	}
	cfg.Desktop.ScreenshotDir = strings.TrimSpace(cfg.Desktop.ScreenshotDir)
	if cfg.Desktop.ScreenshotDir == "" {
		cfg.Desktop.ScreenshotDir = filepath.Join(s.dir, "Screenshots")
	}
	if cfg.Desktop.TypeIntervalMS <= 0 {
		cfg.Desktop.TypeIntervalMS = DefaultTypeIntervalMS
	}
	apps := make(map[string]string, len(cfg.Apps))
	for k, v := range cfg.Apps {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		apps[k] = v
	}
	cfg.Apps = apps
	return cfg
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
