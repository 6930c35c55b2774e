// Package fp16 drives a PreSonus FaderPort 16 in its native (Studio One) mode.
package fp16

import (
	"fmt"
	"log/slog"

	midi "gitlab.com/gomidi/midi/v2"
	"golang.org/x/exp/constraints"

	"github.com/Grissess/pulse-mcu/devices"
	"github.com/Grissess/pulse-mcu/logging"
)

var midiInLog *slog.Logger

func init() {
	midiInLog = logging.Get(logging.MIDI_IN)
}

// FP16 implements devices.Panel for the FaderPort 16.
//
// Panel methods keep per-strip state and must be called from a single goroutine. Heartbeat may be called
// from any goroutine.
type FP16 struct {
	d *devices.MidiDevice

	// meterKinds caches the last meter kind sent to each strip; nil until the first one.
	meterKinds [STRIPS]*devices.MeterKind
}

func New(d *devices.MidiDevice) *FP16 {
	return &FP16{d: d}
}

// Open finds the surface's MIDI ports by name prefix and opens them.
func Open(portName string) (*FP16, error) {
	d, err := devices.OpenMidiDevice(portName)
	if err != nil {
		return nil, err
	}
	return New(d), nil
}

func (f *FP16) Close() error {
	return f.d.Close()
}

func (f *FP16) Strips() int {
	return STRIPS
}

// scale maps unit, clamped to [0,1], onto [0,max], truncating.
func scale[T constraints.Integer](unit float64, max T) T {
	if !(unit > 0) {
		return 0
	}
	if unit > 1 {
		unit = 1
	}
	return T(unit * float64(max))
}

func (f *FP16) SetFaderPosition(slot int, unit float64) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return f.d.Send(midi.Pitchbend(uint8(slot), int16(scale(unit, PBEND_MAX)-0x2000)))
}

func (f *FP16) setLamp(key uint8, on bool) error {
	var velocity uint8
	if on {
		velocity = 127
	}
	return f.d.Send(midi.NoteOn(0, key, velocity))
}

func (f *FP16) SetSoloLamp(slot int, on bool) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return f.setLamp(layout.Solo[slot], on)
}

func (f *FP16) SetMuteLamp(slot int, on bool) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return f.setLamp(layout.Mute[slot], on)
}

func (f *FP16) SetSelectLamp(slot int, on bool) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return f.setLamp(layout.Select[slot], on)
}

// SetMeter sends the meter's kind, if it changed since the last call for the strip, then its value.
func (f *FP16) SetMeter(slot int, kind devices.MeterKind, unit float64) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	valueCC, kindCC := meterCCs(slot)
	if last := f.meterKinds[slot]; last == nil || *last != kind {
		if err := f.d.Send(midi.ControlChange(0, kindCC, uint8(kind))); err != nil {
			return err
		}
		k := kind
		f.meterKinds[slot] = &k
	}
	return f.d.Send(midi.ControlChange(0, valueCC, scale[uint8](unit, CC_MAX)))
}

// SetText writes text across the given display lines of a strip. Each line takes as many characters as it is
// wide and is padded with spaces; the rest carries over to the next line. Characters outside 7-bit ASCII are
// shown as '?'.
func (f *FP16) SetText(slot int, lines []int, text string, align devices.Align, highlight bool) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	chars := sanitize(text)
	mode := byte(align)
	if highlight {
		mode |= TEXT_HIGHLIGHT
	}
	for _, line := range lines {
		if line < 0 || line >= len(LINE_WIDTH) {
			return fmt.Errorf("display line %d out of range %d", line, len(LINE_WIDTH))
		}
		width := LINE_WIDTH[line]
		n := min(width, len(chars))

		b := make([]byte, 0, len(HeaderText)+4+width)
		b = append(b, HeaderText...)
		b = append(b, SYSEX_TEXT, byte(slot), byte(line), mode)
		b = append(b, chars[:n]...)
		for i := n; i < width; i++ {
			b = append(b, ' ')
		}
		chars = chars[n:]
		if err := f.d.Send(midi.SysEx(b)); err != nil {
			return err
		}
	}
	return nil
}

func sanitize(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x20 || r >= 0x7f {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}

// Heartbeat tells the surface a host is still attached. Without one roughly every second the surface
// falls back to its offline display.
func (f *FP16) Heartbeat() error {
	return f.d.Send(midi.PolyAfterTouch(0, 0, 0))
}

// Listen calls fn, on the MIDI driver's goroutine, with every input event decoded from the surface.
func (f *FP16) Listen(fn func(devices.Input)) (stop func(), err error) {
	return f.d.Listen(func(msg midi.Message) {
		if in, ok := Decode(msg); ok {
			fn(in)
		}
	})
}
