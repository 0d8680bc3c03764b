package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Cases     []string          `yaml:"cases"`
	Paths     map[string]string `yaml:"paths"`
	Launcher  Launcher          `yaml:"launcher"`
	Container Container         `yaml:"container"`
	EnvFile   string            `yaml:"env_file"`
	Results   Results           `yaml:"results"`
}

type Launcher struct {
	Entrypoint     []string `yaml:"entrypoint"`
	WorkDir        string   `yaml:"workdir"`
	Shell          string   `yaml:"shell"`
	TimeoutMinutes int      `yaml:"timeout_minutes"`
}

type Container struct {
	Image string `yaml:"image"`
	GPUs  int    `yaml:"gpus"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.EnvFile != "" && !filepath.IsAbs(cfg.EnvFile) {
		cfg.EnvFile = filepath.Join(filepath.Dir(path), cfg.EnvFile)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Cases) == 0 {
		return fmt.Errorf("no cases defined")
	}
	if len(cfg.Launcher.Entrypoint) == 0 {
		return fmt.Errorf("launcher entrypoint is required")
	}
	if cfg.Launcher.Shell == "" {
		cfg.Launcher.Shell = "bash"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	if cfg.Container.GPUs < 0 {
		return fmt.Errorf("container gpus must be non-negative")
	}
	if cfg.Paths == nil {
		cfg.Paths = map[string]string{}
	}
	return nil
}

// ExpandCases resolves the configured case entries (paths or globs) into a
// sorted, de-duplicated file list. Globs are relative to the config file's
// directory when not absolute.
func (c *Config) ExpandCases(configPath string) ([]string, error) {
	baseDir := filepath.Dir(configPath)
	seen := map[string]bool{}
	var files []string
	for _, pattern := range c.Cases {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad case glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("case pattern %q matched no files", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
