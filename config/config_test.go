package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Grissess/pulse-mcu/logging"
	"github.com/Grissess/pulse-mcu/view"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pulse-mcu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, view.All, c.View())
	assert.Equal(t, SurfaceFP16, c.Surface)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
surface: osc
osc:
  listen: 127.0.0.1:0
  strips: 8
heartbeat: 250ms
eventPoll: 100ms
initialView: app-out
logLevels:
  midi_in: debug
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SurfaceOSC, c.Surface)
	assert.Equal(t, "127.0.0.1:0", c.OSC.Listen)
	assert.Equal(t, 8, c.OSC.Strips)
	assert.Equal(t, "127.0.0.1", c.OSC.RemoteHost, "unset keys keep their default")
	assert.Equal(t, 9001, c.OSC.RemotePort)
	assert.Equal(t, 250*time.Millisecond, c.Heartbeat)
	assert.Equal(t, 100*time.Millisecond, c.EventPoll)
	assert.Equal(t, 25, c.PeakRate)
	assert.Equal(t, view.AppOut, c.View())
}

func TestLoadEmptyFile(t *testing.T) {
	c, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "surfce: osc\n"))
	assert.ErrorContains(t, err, "surfce")

	_, err = Load(writeConfig(t, "peakRate: [1, 2]\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{"unknown surface", func(c *Config) { c.Surface = "mackie" }, `unknown surface "mackie"`},
		{"no midi port", func(c *Config) { c.MidiPort = "" }, "midiPort is empty"},
		{"osc strips", func(c *Config) { c.Surface = SurfaceOSC; c.OSC.Strips = 0 }, "osc.strips"},
		{"osc port", func(c *Config) { c.Surface = SurfaceOSC; c.OSC.RemotePort = 70000 }, "osc.remotePort"},
		{"peak rate", func(c *Config) { c.PeakRate = 0 }, "peakRate"},
		{"heartbeat", func(c *Config) { c.Heartbeat = -time.Second }, "heartbeat"},
		{"event poll", func(c *Config) { c.EventPoll = 0 }, "eventPoll"},
		{"view", func(c *Config) { c.InitialView = "sinks" }, "initialView"},
		{"log category", func(c *Config) { c.LogLevels = map[string]string{"video": "info"} }, `unknown log category "video"`},
		{"log level", func(c *Config) { c.LogLevels = map[string]string{"app": "loud"} }, "logLevels.app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}

	// An OSC surface does not need a MIDI port.
	c := Default()
	c.Surface = SurfaceOSC
	c.MidiPort = ""
	assert.NoError(t, c.Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := Default()
	c.PeakRate = 0
	c.Heartbeat = 0
	err := c.Validate()
	assert.ErrorContains(t, err, "peakRate")
	assert.ErrorContains(t, err, "heartbeat")
}

func TestApplyLogLevels(t *testing.T) {
	before := logging.CategoryLevel(logging.AUDIO)
	t.Cleanup(func() { logging.SetCategoryLevel(logging.AUDIO, before) })

	c := Default()
	c.LogLevels = map[string]string{"audio": "Debug"}
	c.ApplyLogLevels()
	assert.Equal(t, slog.LevelDebug, logging.CategoryLevel(logging.AUDIO))
}
