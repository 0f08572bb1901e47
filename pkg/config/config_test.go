package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		SourceDirs: []string{"/path"},
		Aggregation: AggregationConfig{
			CostMode: "auto",
			Timezone: "utc",
			Order:    "asc",
		},
		Performance: PerformanceConfig{
			Workers: 4,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify defaults are set
	if len(cfg.SourceDirs) == 0 {
		t.Error("SourceDirs is empty")
	}

	if cfg.Aggregation.CostMode != "auto" {
		t.Errorf("CostMode = %s, want auto", cfg.Aggregation.CostMode)
	}

	if cfg.Performance.Workers <= 0 {
		t.Error("Workers not set")
	}

	if cfg.Watch.Debounce <= 0 {
		t.Error("Debounce not set")
	}

	if cfg.Logging.Level == "" {
		t.Error("Log level not set")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: nil,
		},
		{
			name:    "no source directories",
			mutate:  func(c *Config) { c.SourceDirs = nil },
			wantErr: ErrNoSourceDirs,
		},
		{
			name:    "invalid cost mode",
			mutate:  func(c *Config) { c.Aggregation.CostMode = "guess" },
			wantErr: ErrInvalidCostMode,
		},
		{
			name:    "invalid order",
			mutate:  func(c *Config) { c.Aggregation.Order = "random" },
			wantErr: ErrInvalidOrder,
		},
		{
			name:    "negative token limit",
			mutate:  func(c *Config) { c.Aggregation.TokenLimit = -1 },
			wantErr: ErrInvalidTokenLimit,
		},
		{
			name:    "invalid timezone",
			mutate:  func(c *Config) { c.Aggregation.Timezone = "Mars/Olympus" },
			wantErr: ErrInvalidTimezone,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Performance.Workers = 0 },
			wantErr: ErrInvalidWorkers,
		},
		{
			name:    "zero debounce",
			mutate:  func(c *Config) { c.Watch.Debounce = 0 },
			wantErr: ErrInvalidDebounce,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: ErrInvalidLogFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		want     string
		wantErr  bool
	}{
		{name: "empty means local", timezone: "", want: time.Local.String()},
		{name: "local", timezone: "local", want: time.Local.String()},
		{name: "utc lowercase", timezone: "utc", want: "UTC"},
		{name: "UTC uppercase", timezone: "UTC", want: "UTC"},
		{name: "iana zone", timezone: "America/New_York", want: "America/New_York"},
		{name: "unknown zone", timezone: "Nowhere/Nohow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Aggregation.Timezone = tt.timezone

			loc, err := cfg.Location()
			if tt.wantErr {
				if err == nil {
					t.Error("Location() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Location() error: %v", err)
			}
			if loc.String() != tt.want {
				t.Errorf("Location() = %s, want %s", loc, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", "")
	t.Setenv("USAGEMETER_COST_MODE", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `source_dirs:
  - /data/projects
aggregation:
  cost_mode: calculate
  timezone: utc
  token_limit: 500000
  order: desc
performance:
  workers: 8
watch:
  debounce: 250ms
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}

	if len(cfg.SourceDirs) != 1 || cfg.SourceDirs[0] != "/data/projects" {
		t.Errorf("SourceDirs = %v", cfg.SourceDirs)
	}
	if cfg.Aggregation.CostMode != "calculate" {
		t.Errorf("CostMode = %s, want calculate", cfg.Aggregation.CostMode)
	}
	if cfg.Aggregation.TokenLimit != 500000 {
		t.Errorf("TokenLimit = %d, want 500000", cfg.Aggregation.TokenLimit)
	}
	if cfg.Performance.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Performance.Workers)
	}
	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("Debounce = %v, want 250ms", cfg.Watch.Debounce)
	}

	// Fields the file omitted keep their defaults.
	if cfg.Logging.Format != "text" {
		t.Errorf("Format = %s, want default text", cfg.Logging.Format)
	}
	if cfg.Aggregation.Order != "desc" {
		t.Errorf("Order = %s, want desc", cfg.Aggregation.Order)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadFromFile() = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("source_dirs: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromFile(path)
	if !errors.Is(err, ErrInvalidYAML) {
		t.Errorf("LoadFromFile() = %v, want ErrInvalidYAML", err)
	}
}

func TestEnvVarOverrides(t *testing.T) {
	t.Setenv("CLAUDE_CONFIG_DIR", "/alt/claude, /other/claude/projects")
	t.Setenv("USAGEMETER_COST_MODE", "DISPLAY")
	t.Setenv("USAGEMETER_TIMEZONE", "utc")
	t.Setenv("USAGEMETER_LOG_LEVEL", "ERROR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Bare config roots gain a projects suffix; explicit ones do not.
	want := []string{
		filepath.Join("/alt/claude", "projects"),
		"/other/claude/projects",
	}
	if len(cfg.SourceDirs) != len(want) {
		t.Fatalf("SourceDirs = %v, want %v", cfg.SourceDirs, want)
	}
	for i := range want {
		if cfg.SourceDirs[i] != want[i] {
			t.Errorf("SourceDirs[%d] = %s, want %s", i, cfg.SourceDirs[i], want[i])
		}
	}

	if cfg.Aggregation.CostMode != "display" {
		t.Errorf("CostMode = %s, want display", cfg.Aggregation.CostMode)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Level = %s, want error", cfg.Logging.Level)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("USAGEMETER_COST_MODE", "")

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := validConfig()
	cfg.Aggregation.TokenLimit = 42

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if loaded.Aggregation.TokenLimit != 42 {
		t.Errorf("TokenLimit = %d, want 42", loaded.Aggregation.TokenLimit)
	}
	if loaded.Aggregation.CostMode != "auto" {
		t.Errorf("CostMode = %s, want auto", loaded.Aggregation.CostMode)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := validConfig()
	cfg.Performance.Workers = 0

	err := Save(cfg, filepath.Join(t.TempDir(), "config.yaml"))
	if err == nil {
		t.Error("Save() accepted an invalid config")
	}
}
