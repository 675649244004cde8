// Package config loads and validates the workflow configuration. All
// settings the stage planner consults are explicit fields here; nothing in
// the assembly logic reads ambient global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Configuration holds the workflow-wide settings consulted during plan and
// graph construction.
type Configuration struct {
	// DummyScans is the number of non-steady-state volumes at the start
	// of the series, forwarded to the motion-correction reference stage.
	DummyScans int `koanf:"dummy_scans" validate:"min=0"`
	// Bold2T1wDOF is the degrees of freedom of the BOLD-to-anatomical
	// registration.
	Bold2T1wDOF int `koanf:"bold2t1w_dof" validate:"oneof=6 9 12"`
	// Bold2T1wInit selects how the registration is initialized.
	Bold2T1wInit string `koanf:"bold2t1w_init" validate:"oneof=t1w t2w header register"`
	// UseBBR enables boundary-based registration when surfaces exist.
	UseBBR bool `koanf:"use_bbr"`
	// FreeSurfer indicates surface reconstructions are available to the
	// registration stage.
	FreeSurfer bool `koanf:"freesurfer"`
	// Sloppy trades accuracy for speed in external stages (testing only).
	Sloppy bool `koanf:"sloppy"`
	// Debug lists subsystems with extra diagnostics (e.g. "fieldmaps").
	Debug []string `koanf:"debug"`
	// Ignore lists processing aspects to drop; "fieldmaps" prunes all
	// estimators before planning.
	Ignore []string `koanf:"ignore"`
	// OMPNthreads is the per-stage thread budget.
	OMPNthreads int `koanf:"omp_nthreads" validate:"min=1"`
	// FreeMemGB hints available memory to memory-hungry stages.
	// Zero means unknown.
	FreeMemGB float64 `koanf:"free_mem_gb" validate:"min=0"`
	// OutputDir is where derivative sinks write; empty disables sinks.
	OutputDir string `koanf:"output_dir"`
	// ShowProgress enables spinners during dataset indexing.
	ShowProgress bool `koanf:"show_progress"`
}

// GetDefaults returns the default configuration values.
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"dummy_scans":   0,
		"bold2t1w_dof":  6,
		"bold2t1w_init": "t1w",
		"use_bbr":       true,
		"freesurfer":    false,
		"sloppy":        false,
		"debug":         []string{},
		"ignore":        []string{},
		"omp_nthreads":  1,
		"free_mem_gb":   0.0,
		"output_dir":    "",
		"show_progress": true,
	}
}

// Load loads configuration from defaults, an optional JSON file, and
// environment variables, in increasing priority.
func Load(configPath string) (*Configuration, error) {
	k := koanf.New(".")

	for key, value := range GetDefaults() {
		k.Set(key, value)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), json.Parser()); err != nil {
				return nil, fmt.Errorf("loading config %s: %w", configPath, err)
			}
		}
	}

	// Environment variables win (BOLDFIT_DUMMY_SCANS -> dummy_scans).
	k.Load(env.Provider("BOLDFIT_", ".", envTransform), nil)

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.OutputDir = expandHomePath(cfg.OutputDir)
	return &cfg, nil
}

// Validate checks field constraints via struct tags.
func (c *Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// IgnoreFieldmaps reports whether the ignore list prunes fieldmap
// estimation.
func (c *Configuration) IgnoreFieldmaps() bool {
	for _, item := range c.Ignore {
		if item == "fieldmaps" {
			return true
		}
	}
	return false
}

// DebugEnabled reports whether a named subsystem has debugging turned on.
func (c *Configuration) DebugEnabled(subsystem string) bool {
	for _, item := range c.Debug {
		if item == subsystem {
			return true
		}
	}
	return false
}

// envTransform converts environment variable names to config keys.
// Example: BOLDFIT_DUMMY_SCANS -> dummy_scans
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "BOLDFIT_"))
}

// expandHomePath expands a leading ~/ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
