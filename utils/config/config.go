// Package config loads the YAML configuration that governs a single engine
// instance: timing, input paths, and the feature toggles named in the
// external-interfaces contract.
package config

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/kotkaro/trafficsim/simerr"
)

var log = logrus.StandardLogger()

// Config is the root configuration structure, read once at engine
// construction.
type Config struct {
	Interval float64 `yaml:"interval"` // seconds per step; warn if outside [0.2, 1.5]
	Seed     int64   `yaml:"seed"`
	Dir      string  `yaml:"dir"` // path prefix for RoadnetFile/FlowFile

	RoadnetFile string `yaml:"roadnetFile"`
	FlowFile    string `yaml:"flowFile"`

	RLTrafficLight bool `yaml:"rlTrafficLight"` // if true, phases only advance via SetTrafficLightPhase
	LaneChange     bool `yaml:"laneChange"`     // enables the lane-change subsystem and its extra stages
	SaveReplay     bool `yaml:"saveReplay"`

	RoadnetLogFile string `yaml:"roadnetLogFile,omitempty"`
	ReplayLogFile  string `yaml:"replayLogFile,omitempty"`
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "config: read %s: %v", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, simerr.Wrap(simerr.ErrConfigInvalid, "config: parse %s: %v", path, err)
	}
	c.checkWarnings()
	return &c, nil
}

// checkWarnings logs the same non-fatal sanity checks the original reference
// engine's checkWarning performed: a step interval outside a sane range is
// unusual but not an error.
func (c *Config) checkWarnings() {
	if c.Interval < 0.2 || c.Interval > 1.5 {
		log.Warnf("config: interval %.3fs is outside the usual [0.2, 1.5] range", c.Interval)
	}
}

// RoadnetPath and FlowPath join Dir with the configured relative paths.
func (c *Config) RoadnetPath() string { return joinPath(c.Dir, c.RoadnetFile) }
func (c *Config) FlowPath() string    { return joinPath(c.Dir, c.FlowFile) }

func joinPath(dir, file string) string {
	if dir == "" {
		return file
	}
	if dir[len(dir)-1] == '/' {
		return dir + file
	}
	return dir + "/" + file
}
