// Package view assigns audio objects to the surface's strips and keeps the strips rendered.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Grissess/pulse-mcu/audio"
	"github.com/Grissess/pulse-mcu/devices"
	"github.com/Grissess/pulse-mcu/gain"
	"github.com/Grissess/pulse-mcu/logging"
)

var appLog *slog.Logger

func init() {
	appLog = logging.Get(logging.APP)
}

// Kind selects which audio objects the strips show.
type Kind uint8

const (
	HardwareIn Kind = iota
	HardwareOut
	AppIn
	AppOut
	All
)

var kindNames = map[Kind]string{
	HardwareIn:  "hardware-in",
	HardwareOut: "hardware-out",
	AppIn:       "app-in",
	AppOut:      "app-out",
	All:         "all",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown view %q", s)
}

func (k Kind) shows(o audio.Object) bool {
	switch k {
	case All:
		return true
	case HardwareIn:
		return o.ID.Kind == audio.HardwareIn
	case HardwareOut:
		return o.ID.Kind == audio.HardwareOut
	case AppIn:
		return o.ID.Kind == audio.AppIn
	case AppOut:
		return o.ID.Kind == audio.AppOut
	}
	return false
}

// Runtime is where Strips runs work outside the caller.
type Runtime interface {
	// Go runs a long-lived task; a non-nil error ends the session.
	Go(func() error)
	// Post queues work onto the goroutine that owns the Strips. It never blocks.
	Post(func(ctx context.Context) error)
}

// peakSub is a running peak watch. A slot's subscription is replaced, never restarted.
type peakSub struct {
	id      audio.ID
	monitor audio.MonitorRef
	cancel  context.CancelFunc
	done    chan struct{}
}

// Strips binds audio objects to slots, one object per slot, in snapshot order.
//
// Strips is confined to one goroutine, the same one that owns the Model; peak samples reach it through
// Runtime.Post.
type Strips struct {
	model    *audio.Model
	server   audio.Server
	panel    devices.Panel
	rt       Runtime
	peakRate int

	view  Kind
	bound []*audio.ID
	subs  []*peakSub
}

func New(model *audio.Model, server audio.Server, panel devices.Panel, width int, rt Runtime, peakRate int) *Strips {
	return &Strips{
		model:    model,
		server:   server,
		panel:    panel,
		rt:       rt,
		peakRate: peakRate,
		view:     All,
		bound:    make([]*audio.ID, width),
		subs:     make([]*peakSub, width),
	}
}

func (s *Strips) View() Kind {
	return s.view
}

func (s *Strips) Width() int {
	return len(s.bound)
}

// Bound returns the object bound to slot.
func (s *Strips) Bound(slot int) (audio.ID, bool) {
	if slot < 0 || slot >= len(s.bound) || s.bound[slot] == nil {
		return audio.ID{}, false
	}
	return *s.bound[slot], true
}

// SetView shows the objects of kind, in snapshot order, on slots from 0; slots past the last object are
// emptied. Peak subscriptions are only replaced on slots whose object or monitor changed.
func (s *Strips) SetView(ctx context.Context, kind Kind) error {
	if s.view != kind {
		appLog.Info("View changed", "from", s.view, "to", kind)
	}
	s.view = kind

	shown := []audio.Object{}
	for _, o := range s.model.Objects() {
		if kind.shows(o) {
			shown = append(shown, o)
		}
	}

	var errs []error
	for slot := range s.bound {
		if slot < len(shown) {
			o := shown[slot]
			id := o.ID
			s.bound[slot] = &id
			s.subscribe(ctx, slot, &o)
		} else {
			s.bound[slot] = nil
			s.subscribe(ctx, slot, nil)
		}
		errs = append(errs, s.render(slot))
	}
	return errors.Join(errs...)
}

// Refresh re-applies the current view.
func (s *Strips) Refresh(ctx context.Context) error {
	return s.SetView(ctx, s.view)
}

// SnapshotReplaced implements audio.Listener.
func (s *Strips) SnapshotReplaced(ctx context.Context) error {
	return s.Refresh(ctx)
}

// ObjectChanged implements audio.Listener.
func (s *Strips) ObjectChanged(ctx context.Context, id audio.ID) error {
	return s.HandleObjectChanged(ctx, id)
}

// HandleObjectChanged re-renders the slots showing id, following the object to a new monitor if it moved.
func (s *Strips) HandleObjectChanged(ctx context.Context, id audio.ID) error {
	var errs []error
	for slot, b := range s.bound {
		if b == nil || *b != id {
			continue
		}
		if o, ok := s.model.Lookup(id); ok {
			s.subscribe(ctx, slot, &o)
		}
		errs = append(errs, s.render(slot))
	}
	return errors.Join(errs...)
}

// ChangeVolume sets the volume of the object on slot from a fader position. Unbound slots are ignored.
func (s *Strips) ChangeVolume(ctx context.Context, slot int, unit float64) error {
	id, ok := s.Bound(slot)
	if !ok {
		return nil
	}
	alive, err := s.model.SetVolume(ctx, id, gain.Fader.ToLinearUnit(unit))
	if err != nil {
		return err
	}
	if !alive {
		return s.Refresh(ctx)
	}
	return s.HandleObjectChanged(ctx, id)
}

// ToggleMute flips the mute of the object on slot. Unbound slots are ignored.
func (s *Strips) ToggleMute(ctx context.Context, slot int) error {
	id, ok := s.Bound(slot)
	if !ok {
		return nil
	}
	o, ok := s.model.Lookup(id)
	if !ok {
		return s.Refresh(ctx)
	}
	alive, err := s.model.SetMuted(ctx, id, !o.Muted)
	if err != nil {
		return err
	}
	if !alive {
		return s.Refresh(ctx)
	}
	return s.HandleObjectChanged(ctx, id)
}

// Close cancels every peak subscription.
func (s *Strips) Close() {
	for slot, sub := range s.subs {
		if sub != nil {
			sub.cancel()
			s.subs[slot] = nil
		}
	}
}

// subscribe makes the slot's peak subscription follow o, nil for none. An outgoing subscription has exited
// before its replacement starts.
func (s *Strips) subscribe(ctx context.Context, slot int, o *audio.Object) {
	old := s.subs[slot]
	if old != nil && o != nil && old.id == o.ID && old.monitor == o.Monitor {
		return
	}
	if old != nil {
		old.cancel()
		<-old.done
		s.subs[slot] = nil
	}
	if o == nil {
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &peakSub{
		id:      o.ID,
		monitor: o.Monitor,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.subs[slot] = sub
	s.rt.Go(func() error {
		defer close(sub.done)
		err := s.server.WatchPeaks(subCtx, sub.monitor, s.peakRate, func(v float64) {
			s.rt.Post(func(ctx context.Context) error {
				return s.showPeak(slot, sub, v)
			})
		})
		switch {
		case errors.Is(err, audio.ErrNotFound):
			appLog.Info("Peak source went away", "slot", slot, "id", sub.id, "source", sub.monitor.Source)
			return nil
		case err != nil && subCtx.Err() == nil:
			return fmt.Errorf("watch peaks of %s: %w", sub.id, err)
		}
		return nil
	})
}

func (s *Strips) showPeak(slot int, sub *peakSub, v float64) error {
	if s.subs[slot] != sub {
		return nil
	}
	return s.panel.SetMeter(slot, devices.MeterBar, gain.Meter.FromLinearUnit(v))
}

func (s *Strips) render(slot int) error {
	var o audio.Object
	ok := false
	if id := s.bound[slot]; id != nil {
		o, ok = s.model.Lookup(*id)
	}
	if !ok {
		return errors.Join(
			s.panel.SetFaderPosition(slot, 0),
			s.panel.SetSoloLamp(slot, false),
			s.panel.SetMuteLamp(slot, false),
			s.panel.SetSelectLamp(slot, false),
			s.panel.SetText(slot, []int{0, 1}, "", devices.AlignCenter, false),
			s.panel.SetMeter(slot, devices.MeterNone, 0),
		)
	}
	return errors.Join(
		s.panel.SetFaderPosition(slot, gain.Fader.FromLinearUnit(o.Volume)),
		s.panel.SetMuteLamp(slot, o.Muted),
		s.panel.SetText(slot, []int{0}, o.AppName, devices.AlignCenter, false),
		s.panel.SetText(slot, []int{1}, o.Name, devices.AlignCenter, false),
	)
}

// Describe logs everything known about the object on slot.
func (s *Strips) Describe(slot int) {
	id, ok := s.Bound(slot)
	if !ok {
		appLog.Info("Strip is empty", "slot", slot)
		return
	}
	o, ok := s.model.Lookup(id)
	if !ok {
		if gone, ok := s.model.Closed(id); ok {
			appLog.Info("Strip object is gone", "slot", slot, "id", id, "name", gone.Name, "state", gone.State)
			return
		}
		appLog.Info("Strip object is gone", "slot", slot, "id", id)
		return
	}
	appLog.Info("Strip",
		"slot", slot,
		"id", o.ID,
		"name", o.Name,
		"app", o.AppName,
		"volume", o.Volume,
		"muted", o.Muted,
		"monitor", o.Monitor.Source,
		"stream", o.Monitor.Stream,
	)
}
