// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Camcore Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package syncobj

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config carries the sizing knobs of a Table.
type Config struct {
	// Capacity is the fixed number of object slots in the table.
	Capacity int `yaml:"capacity"`

	// Workers is the number of dispatcher goroutines draining
	// callback jobs.
	Workers int `yaml:"workers"`

	// MaxFanout bounds both the member count of a merged object and the
	// number of merged objects one object may be a member of.
	MaxFanout int `yaml:"max-fanout"`

	// MonitorDepth is the per-object ring size of recent operations kept
	// for diagnostics. Zero disables monitoring.
	MonitorDepth int `yaml:"monitor-depth"`

	// EventBacklog bounds the number of terminal-transition events kept
	// for Events and WaitEvents; oldest events are dropped past it.
	EventBacklog int `yaml:"event-backlog"`
}

// DefaultConfig returns the sizing used when New is given a nil config.
func DefaultConfig() *Config {
	return &Config{
		Capacity:     1024,
		Workers:      4,
		MaxFanout:    64,
		MonitorDepth: 16,
		EventBacklog: 4096,
	}
}

const maxCapacity = 1 << handleIndexBits

func (cfg *Config) validate() error {
	if cfg.Capacity < 1 || cfg.Capacity > maxCapacity {
		return fmt.Errorf("cannot use table capacity %d: must be between 1 and %d", cfg.Capacity, maxCapacity)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("cannot use %d dispatcher workers: must be at least 1", cfg.Workers)
	}
	if cfg.MaxFanout < 1 {
		return fmt.Errorf("cannot use max fan-out %d: must be at least 1", cfg.MaxFanout)
	}
	if cfg.MonitorDepth < 0 {
		return fmt.Errorf("cannot use monitor depth %d: must not be negative", cfg.MonitorDepth)
	}
	if cfg.EventBacklog < 0 {
		return fmt.Errorf("cannot use event backlog %d: must not be negative", cfg.EventBacklog)
	}
	return nil
}

// ReadConfig loads a Config from the YAML file at path. Settings not
// present in the file keep their default values.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read sync table config: %v", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse sync table config %q: %v", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
