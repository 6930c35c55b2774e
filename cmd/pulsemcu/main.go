// Command pulsemcu drives a motorized control surface from the PulseAudio mixer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	midi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/Grissess/pulse-mcu/audio/pulse"
	"github.com/Grissess/pulse-mcu/bridge"
	"github.com/Grissess/pulse-mcu/config"
	"github.com/Grissess/pulse-mcu/devices/fp16"
	"github.com/Grissess/pulse-mcu/devices/oscsurface"
	"github.com/Grissess/pulse-mcu/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Get(logging.APP).Error("Exiting", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyLogLevels()

	if cfg.LogControl != "" {
		stop, err := logging.ListenOSC(cfg.LogControl)
		if err != nil {
			return err
		}
		defer stop()
	}

	surface, closeSurface, err := openSurface(cfg)
	if err != nil {
		return err
	}
	defer closeSurface()

	server, err := pulse.Dial(cfg.ClientName, cfg.EventPoll)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	b := bridge.New(server, surface, bridge.Options{
		PeakRate:    cfg.PeakRate,
		Heartbeat:   cfg.Heartbeat,
		InitialView: cfg.View(),
	})
	return b.Run(ctx)
}

func openSurface(cfg config.Config) (bridge.Surface, func(), error) {
	switch cfg.Surface {
	case config.SurfaceFP16:
		f, err := fp16.Open(cfg.MidiPort)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s (in: %s, out: %s): %w",
				cfg.MidiPort, midi.GetInPorts(), midi.GetOutPorts(), err)
		}
		return f, func() {
			f.Close()
			midi.CloseDriver()
		}, nil
	case config.SurfaceOSC:
		s := oscsurface.Dial(cfg.OSC.RemoteHost, cfg.OSC.RemotePort, cfg.OSC.Listen, cfg.OSC.Strips)
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown surface %q", cfg.Surface)
	}
}
