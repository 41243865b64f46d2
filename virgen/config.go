// Package virgen implements the elaboration driver (component F): it
// wraps the submodule graph constructor and the module emitter into a
// per-module preprocess/virgen lifecycle, and recursively elaborates
// every distinct module instance a design root reaches.
package virgen

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazardflow/hfc/emit"
)

// Config is the driver's user-facing configuration, loadable from a
// YAML file alongside the design root.
type Config struct {
	// SystemTask enables $display/$fatal emission for lowered display
	// and assert system tasks.
	SystemTask bool `yaml:"system_task"`
	// ClockName and ResetName override the conventional clk/rst port
	// names every emitted module exposes.
	ClockName string `yaml:"clock_name"`
	ResetName string `yaml:"reset_name"`
	// LogLevel selects the driver's slog verbosity: debug, info, warn,
	// or error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig mirrors emit.DefaultOptions with info-level logging.
func DefaultConfig() Config {
	return Config{SystemTask: true, ClockName: "clk", ResetName: "rst", LogLevel: "info"}
}

// LoadConfig reads and parses a YAML config file, filling in any unset
// field from DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("virgen: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("virgen: parsing config %s: %w", path, err)
	}
	if cfg.ClockName == "" {
		cfg.ClockName = "clk"
	}
	if cfg.ResetName == "" {
		cfg.ResetName = "rst"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// EmitOptions projects the driver-facing Config down to the emitter's
// own Options.
func (c Config) EmitOptions() emit.Options {
	return emit.Options{SystemTask: c.SystemTask, ClockName: c.ClockName, ResetName: c.ResetName}
}
