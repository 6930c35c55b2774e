package devicestesting

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Grissess/pulse-mcu/devices"
)

// Panel is a devices.Panel that records every write as a line of text:
//
//	fader 0 0.7619
//	solo 0 false
//	mute 0 true
//	select 0 false
//	text 0 [1] "Speakers"
//	meter 0 bar 0.5000
//
// It also has the surface methods the bridge needs, so it can stand in for a whole control surface.
type Panel struct {
	mu sync.Mutex

	strips     int
	calls      []string
	err        error
	heartbeats int
	input      func(devices.Input)
}

func NewPanel(strips int) *Panel {
	return &Panel{strips: strips}
}

func (p *Panel) record(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
	return nil
}

func (p *Panel) check(slot int) error {
	if slot < 0 || slot >= p.strips {
		return fmt.Errorf("slot %d out of range %d", slot, p.strips)
	}
	return nil
}

func (p *Panel) SetFaderPosition(slot int, unit float64) error {
	if err := p.check(slot); err != nil {
		return err
	}
	return p.record("fader %d %.4f", slot, unit)
}

func (p *Panel) SetSoloLamp(slot int, on bool) error {
	if err := p.check(slot); err != nil {
		return err
	}
	return p.record("solo %d %t", slot, on)
}

func (p *Panel) SetMuteLamp(slot int, on bool) error {
	if err := p.check(slot); err != nil {
		return err
	}
	return p.record("mute %d %t", slot, on)
}

func (p *Panel) SetSelectLamp(slot int, on bool) error {
	if err := p.check(slot); err != nil {
		return err
	}
	return p.record("select %d %t", slot, on)
}

func (p *Panel) SetText(slot int, lines []int, text string, align devices.Align, highlight bool) error {
	if err := p.check(slot); err != nil {
		return err
	}
	return p.record("text %d %v %q", slot, lines, text)
}

func (p *Panel) SetMeter(slot int, kind devices.MeterKind, unit float64) error {
	if err := p.check(slot); err != nil {
		return err
	}
	return p.record("meter %d %s %.4f", slot, kind, unit)
}

func (p *Panel) Strips() int {
	return p.strips
}

func (p *Panel) Heartbeat() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.heartbeats++
	return nil
}

func (p *Panel) Heartbeats() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heartbeats
}

func (p *Panel) Listen(fn func(devices.Input)) (stop func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.input != nil {
		return nil, errors.New("already listening")
	}
	p.input = fn
	return func() {
		p.mu.Lock()
		p.input = nil
		p.mu.Unlock()
	}, nil
}

// Press delivers an input event to the listener, if there is one, and reports whether there was.
func (p *Panel) Press(in devices.Input) bool {
	p.mu.Lock()
	fn := p.input
	p.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(in)
	return true
}

// Calls returns the recorded writes, oldest first.
func (p *Panel) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// SlotCalls returns the recorded writes to one slot.
func (p *Panel) SlotCalls(slot int) []string {
	out := []string{}
	for _, c := range p.Calls() {
		var kind string
		var s int
		if _, err := fmt.Sscanf(c, "%s %d", &kind, &s); err == nil && s == slot {
			out = append(out, c)
		}
	}
	return out
}

func (p *Panel) ResetCalls() {
	p.mu.Lock()
	p.calls = nil
	p.mu.Unlock()
}

// SetError makes every later write fail with err; nil restores normal operation.
func (p *Panel) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}
