package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/catalyst/internal/apperr"
	"github.com/starford/catalyst/internal/ignore"
	"github.com/starford/catalyst/internal/models"
	"github.com/starford/catalyst/internal/storage"
	"github.com/starford/catalyst/internal/syncer"
	"github.com/starford/catalyst/internal/watcher"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Project    ProjectConfig     `yaml:"project"`
	Watch      WatchConfig       `yaml:"watch"`
	Sync       SyncConfig        `yaml:"sync"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Project.Validate(); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ProjectConfig names the knowledge source being synced.
type ProjectConfig struct {
	// Name routes notes into the vault's project subtree when set.
	Name string `yaml:"name"`
	// Root is the directory synced by the sync and classify commands.
	Root string `yaml:"root"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// WatchConfig controls the change watcher.
type WatchConfig struct {
	Paths          []string      `yaml:"paths"`
	Extensions     []string      `yaml:"extensions"`
	Debounce       time.Duration `yaml:"debounce"`
	IgnoreFile     string        `yaml:"ignore_file"`
	RescanInterval time.Duration `yaml:"rescan_interval"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Paths, validation.Required),
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond), validation.Max(10*time.Second)),
		validation.Field(&c.RescanInterval, validation.Min(time.Duration(0))),
	)
}

// SyncConfig lists the destination vaults and the write policy.
type SyncConfig struct {
	AutoSync           bool                `yaml:"auto_sync"`
	Workers            int                 `yaml:"workers"`
	MaxWritesPerSecond float64             `yaml:"max_writes_per_second"`
	Targets            []models.SyncTarget `yaml:"targets"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(1), validation.Max(64)),
		validation.Field(&c.MaxWritesPerSecond, validation.Min(0.0)),
	); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := validation.ValidateStruct(t,
			validation.Field(&t.Name, validation.Required),
			validation.Field(&t.Kind, validation.Required, validation.In(models.TargetKindObsidian, models.TargetKindFile)),
			validation.Field(&t.Path, validation.Required),
		); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		if seen[t.Name] {
			return fmt.Errorf("targets[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Enabled returns the enabled targets in configuration order.
func (c *SyncConfig) Enabled() []models.SyncTarget {
	var out []models.SyncTarget
	for _, t := range c.Targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// Select returns the enabled targets, narrowed to name when it is set.
func (c *SyncConfig) Select(name string) ([]models.SyncTarget, error) {
	enabled := c.Enabled()
	if name == "" {
		return enabled, nil
	}
	for _, t := range enabled {
		if t.Name == name {
			return []models.SyncTarget{t}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", apperr.ErrUnknownTarget, name)
}

// ClassifierConfig points at an optional rules file replacing the built-in table.
type ClassifierConfig struct {
	RulesFile string `yaml:"rules_file"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Project: ProjectConfig{
			Root: ".claude",
		},
		Watch: WatchConfig{
			Paths:      []string{".claude"},
			Extensions: []string{storage.DefaultExtension},
			Debounce:   watcher.DefaultDebounce,
			IgnoreFile: ignore.Filename,
		},
		Sync: SyncConfig{
			AutoSync: true,
			Workers:  syncer.DefaultWorkers,
		},
	}
}
