// Package config loads the bridge's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Grissess/pulse-mcu/devices/fp16"
	"github.com/Grissess/pulse-mcu/logging"
	"github.com/Grissess/pulse-mcu/view"
)

const (
	SurfaceFP16 = "fp16"
	SurfaceOSC  = "osc"
)

type OSC struct {
	Listen     string `yaml:"listen"`
	RemoteHost string `yaml:"remoteHost"`
	RemotePort int    `yaml:"remotePort"`
	Strips     int    `yaml:"strips"`
}

type Config struct {
	ClientName  string            `yaml:"clientName"`
	Surface     string            `yaml:"surface"`
	MidiPort    string            `yaml:"midiPort"`
	OSC         OSC               `yaml:"osc"`
	PeakRate    int               `yaml:"peakRate"`
	Heartbeat   time.Duration     `yaml:"heartbeat"`
	EventPoll   time.Duration     `yaml:"eventPoll"`
	InitialView string            `yaml:"initialView"`
	LogControl  string            `yaml:"logControl"`
	LogLevels   map[string]string `yaml:"logLevels"`
}

func Default() Config {
	return Config{
		ClientName: "pulse-mcu",
		Surface:    SurfaceFP16,
		MidiPort:   fp16.PORT_NAME,
		OSC: OSC{
			Listen:     "0.0.0.0:9000",
			RemoteHost: "127.0.0.1",
			RemotePort: 9001,
			Strips:     16,
		},
		PeakRate:    25,
		Heartbeat:   time.Second,
		EventPoll:   250 * time.Millisecond,
		InitialView: view.All.String(),
		LogLevels:   map[string]string{},
	}
}

// Load reads the file at path over the defaults and validates the result. An empty path gives the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, c.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := c.decode(data); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	switch c.Surface {
	case SurfaceFP16:
		if c.MidiPort == "" {
			errs = append(errs, errors.New("midiPort is empty"))
		}
	case SurfaceOSC:
		if c.OSC.Strips <= 0 {
			errs = append(errs, fmt.Errorf("osc.strips must be positive, got %d", c.OSC.Strips))
		}
		if c.OSC.RemotePort <= 0 || c.OSC.RemotePort > 65535 {
			errs = append(errs, fmt.Errorf("osc.remotePort %d out of range", c.OSC.RemotePort))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown surface %q", c.Surface))
	}
	if c.PeakRate <= 0 {
		errs = append(errs, fmt.Errorf("peakRate must be positive, got %d", c.PeakRate))
	}
	if c.Heartbeat <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat must be positive, got %s", c.Heartbeat))
	}
	if c.EventPoll <= 0 {
		errs = append(errs, fmt.Errorf("eventPoll must be positive, got %s", c.EventPoll))
	}
	if _, err := view.ParseKind(c.InitialView); err != nil {
		errs = append(errs, fmt.Errorf("initialView: %w", err))
	}
	for cat, lvl := range c.LogLevels {
		if _, ok := logging.ParseCategory(cat); !ok {
			errs = append(errs, fmt.Errorf("unknown log category %q", cat))
		}
		if _, err := logging.ParseLevel(lvl); err != nil {
			errs = append(errs, fmt.Errorf("logLevels.%s: %w", cat, err))
		}
	}
	return errors.Join(errs...)
}

func (c Config) View() view.Kind {
	k, _ := view.ParseKind(c.InitialView)
	return k
}

// ApplyLogLevels sets the configured level of each log category.
func (c Config) ApplyLogLevels() {
	for cat, lvl := range c.LogLevels {
		category, ok := logging.ParseCategory(cat)
		if !ok {
			continue
		}
		if level, err := logging.ParseLevel(lvl); err == nil {
			logging.SetCategoryLevel(category, level)
		}
	}
}
