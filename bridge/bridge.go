// Package bridge runs a session between the audio server and a control surface.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Grissess/pulse-mcu/audio"
	"github.com/Grissess/pulse-mcu/devices"
	"github.com/Grissess/pulse-mcu/logging"
	"github.com/Grissess/pulse-mcu/view"
)

var appLog *slog.Logger

func init() {
	appLog = logging.Get(logging.APP)
}

// Surface is a control surface the bridge can drive.
type Surface interface {
	devices.Panel
	Strips() int
	// Heartbeat keeps the surface in host mode; it is called periodically from its own goroutine.
	Heartbeat() error
	// Listen calls fn with each input event, from any goroutine, until stop is called.
	Listen(fn func(devices.Input)) (stop func(), err error)
}

type Options struct {
	PeakRate    int           // peak samples per second per strip
	Heartbeat   time.Duration // period between heartbeats
	InitialView view.Kind
}

var DefaultOptions = Options{
	PeakRate:    25,
	Heartbeat:   time.Second,
	InitialView: view.All,
}

// Bridge connects an audio server to a surface. Run it once.
type Bridge struct {
	server  audio.Server
	surface Surface
	opts    Options

	loop   *Loop
	worker *Worker
	group  *errgroup.Group

	// Owned by the loop.
	model  *audio.Model
	strips *view.Strips
}

// New returns a bridge; zero rates in opts take their DefaultOptions values.
func New(server audio.Server, surface Surface, opts Options) *Bridge {
	if opts.PeakRate <= 0 {
		opts.PeakRate = DefaultOptions.PeakRate
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultOptions.Heartbeat
	}
	loop := NewLoop()
	return &Bridge{
		server:  server,
		surface: surface,
		opts:    opts,
		loop:    loop,
		worker:  NewWorker(loop),
	}
}

// Go implements view.Runtime.
func (b *Bridge) Go(fn func() error) {
	b.group.Go(fn)
}

// Post implements view.Runtime.
func (b *Bridge) Post(fn func(ctx context.Context) error) {
	b.loop.Post(fn)
}

// Run runs the session until ctx is done, returning nil, or until something fails, returning the first
// error. Every task of the session has stopped when Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	b.group = group
	b.model = audio.NewModel(b.server)
	b.strips = view.New(b.model, b.server, b.surface, b.surface.Strips(), b, b.opts.PeakRate)
	b.model.SetListener(b.strips)

	stop, err := b.surface.Listen(b.onInput)
	if err != nil {
		return fmt.Errorf("listen to surface: %w", err)
	}

	b.loop.Post(func(ctx context.Context) error {
		if err := b.model.Refresh(ctx); err != nil {
			return err
		}
		appLog.Info("Session started", "objects", b.model.Len(), "strips", b.strips.Width(), "view", b.opts.InitialView)
		return b.strips.SetView(ctx, b.opts.InitialView)
	})

	group.Go(func() error {
		return b.loop.Run(ctx)
	})
	group.Go(func() error {
		return b.worker.Run(ctx)
	})
	group.Go(func() error {
		return RunHeartbeat(ctx, b.opts.Heartbeat, b.surface.Heartbeat)
	})
	group.Go(func() error {
		err := b.server.WatchEvents(ctx, func(ev audio.Event) {
			b.loop.Post(func(ctx context.Context) error {
				return b.model.HandleEvent(ctx, ev)
			})
		})
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("stream ended")
		}
		return fmt.Errorf("audio events: %w", err)
	})
	group.Go(func() error {
		<-ctx.Done()
		stop()
		return nil
	})

	err = group.Wait()
	b.strips.Close()
	if err != nil {
		appLog.Error("Session failed", "err", err)
	}
	return err
}

// RunHeartbeat calls beat now and then every period until ctx is done. A failed beat is returned.
func RunHeartbeat(ctx context.Context, period time.Duration, beat func() error) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		if err := beat(); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// onInput runs on the surface's goroutine.
func (b *Bridge) onInput(in devices.Input) {
	b.loop.Post(func(ctx context.Context) error {
		return b.handleInput(ctx, in)
	})
}

func (b *Bridge) handleInput(ctx context.Context, in devices.Input) error {
	switch {
	case in.Kind == devices.FaderMove:
		b.worker.Enqueue("change volume", func(ctx context.Context) error {
			return b.strips.ChangeVolume(ctx, in.Slot, in.Value)
		})

	case in.Kind == devices.MutePress && in.Pressed:
		b.worker.Enqueue("toggle mute", func(ctx context.Context) error {
			return b.strips.ToggleMute(ctx, in.Slot)
		})

	case in.Kind == devices.SoloPress && in.Pressed:
		b.strips.Describe(in.Slot)

	case in.Kind == devices.ButtonPress && in.Pressed && in.View != "":
		kind, err := view.ParseKind(in.View)
		if err != nil {
			appLog.Warn("Ignoring view button", "button", in.Button, "err", err)
			return nil
		}
		b.worker.Enqueue("set view", func(ctx context.Context) error {
			return b.strips.SetView(ctx, kind)
		})

	default:
		appLog.Debug("Unbound input", "kind", in.Kind, "slot", in.Slot, "pressed", in.Pressed, "button", in.Button)
	}
	return nil
}
