// Package config loads the simulation settings and the minimal user PLC
// declarations. User records stay minimal by design: roles, kinds and logic
// are derived from the network model, never declared here.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/hydrolab/waterloop/plc"
)

// SimConfig configures one co-simulation run.
type SimConfig struct {
	// NumSteps, when positive, overrides the duration-derived step count.
	NumSteps int `yaml:"num_steps"`

	Simulation struct {
		DurationHours float64 `yaml:"duration_hours"`
		StepMinutes   float64 `yaml:"step_minutes"`
	} `yaml:"simulation"`

	Network struct {
		InpPath string `yaml:"inp_path"`
	} `yaml:"network"`

	Recording struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"recording"`

	Monitoring struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"monitoring"`
}

// TotalSteps returns the configured step count, falling back to
// duration/step when num_steps is absent.
func (c SimConfig) TotalSteps() (int, error) {
	if c.NumSteps > 0 {
		return c.NumSteps, nil
	}

	if c.Simulation.StepMinutes <= 0 {
		return 0, fmt.Errorf("simulation.step_minutes must be positive")
	}

	return int(c.Simulation.DurationHours * 60 / c.Simulation.StepMinutes), nil
}

// A UserPlcFile is the on-disk shape of the user PLC declarations.
type UserPlcFile struct {
	Scada struct {
		IP string `yaml:"ip"`
	} `yaml:"scada"`

	Plcs []UserPlcRecord `yaml:"plcs"`
}

// A UserPlcRecord declares one PLC with the minimal authoritative fields.
type UserPlcRecord struct {
	ID        string `yaml:"id"`
	ElementID string `yaml:"element_id"`
	IP        string `yaml:"ip"`
}

// UserEntries converts the declared records into synthesizer input.
func (f UserPlcFile) UserEntries() []plc.UserEntry {
	entries := make([]plc.UserEntry, 0, len(f.Plcs))
	for _, r := range f.Plcs {
		entries = append(entries, plc.UserEntry{
			PlcID:     r.ID,
			ElementID: r.ElementID,
			IP:        r.IP,
		})
	}

	return entries
}

// LoadSimConfig reads a simulation config file and applies WATERLOOP_*
// environment overrides.
func LoadSimConfig(path string) (SimConfig, error) {
	var cfg SimConfig
	if err := loadYAML(path, &cfg); err != nil {
		return SimConfig{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// LoadUserPlcFile reads the user PLC declarations.
func LoadUserPlcFile(path string) (UserPlcFile, error) {
	var f UserPlcFile
	if err := loadYAML(path, &f); err != nil {
		return UserPlcFile{}, err
	}

	return f, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	return nil
}

// Environment overrides, applied after the file is parsed. godotenv loading
// of a .env file happens in the CLI before this runs.
func applyEnvOverrides(cfg *SimConfig) {
	if v := os.Getenv("WATERLOOP_NUM_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumSteps = n
		}
	}

	if v := os.Getenv("WATERLOOP_INP_PATH"); v != "" {
		cfg.Network.InpPath = v
	}

	if v := os.Getenv("WATERLOOP_RECORDING_PATH"); v != "" {
		cfg.Recording.Path = v
		cfg.Recording.Enabled = true
	}

	if v := os.Getenv("WATERLOOP_MONITOR_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Monitoring.Port = p
			cfg.Monitoring.Enabled = true
		}
	}
}
