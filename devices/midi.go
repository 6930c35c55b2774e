package devices

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	midi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/Grissess/pulse-mcu/logging"
)

var midiInLog, midiOutLog *slog.Logger

func init() {
	midiInLog = logging.Get(logging.MIDI_IN)
	midiOutLog = logging.Get(logging.MIDI_OUT)
}

// ErrPortNotFound is returned by OpenMidiDevice when no port matches the requested name.
var ErrPortNotFound = errors.New("MIDI port not found")

// MidiDevice is a pair of MIDI ports to one device. Sends are serialised, so a MidiDevice may be shared by
// goroutines.
type MidiDevice struct {
	mu sync.Mutex

	inPort  drivers.In
	outPort drivers.Out
}

func NewMidiDevice(inPort drivers.In, outPort drivers.Out) *MidiDevice {
	return &MidiDevice{
		inPort:  inPort,
		outPort: outPort,
	}
}

// OpenMidiDevice finds the first input and output ports whose names start with namePrefix and opens them.
// A MIDI driver must be registered first, e.g. by importing gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
func OpenMidiDevice(namePrefix string) (*MidiDevice, error) {
	in, err := findPort(midi.GetInPorts(), namePrefix)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	out, err := findPort(midi.GetOutPorts(), namePrefix)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	d := NewMidiDevice(in, out)
	if err := d.Open(); err != nil {
		return nil, err
	}
	return d, nil
}

func findPort[T interface{ String() string }](ports []T, namePrefix string) (T, error) {
	for _, p := range ports {
		if strings.HasPrefix(p.String(), namePrefix) {
			return p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %q", ErrPortNotFound, namePrefix)
}

func (d *MidiDevice) Open() error {
	midiInLog.Info("Opening MIDI device", "inPort", d.inPort.String(), "outPort", d.outPort.String())
	if err := d.inPort.Open(); err != nil {
		return fmt.Errorf("open %s: %w", d.inPort, err)
	}
	if err := d.outPort.Open(); err != nil {
		return fmt.Errorf("open %s: %w", d.outPort, err)
	}
	return nil
}

func (d *MidiDevice) Close() error {
	return errors.Join(d.inPort.Close(), d.outPort.Close())
}

// Send writes one message to the output port.
func (d *MidiDevice) Send(msg midi.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	midiOutLog.Debug("Sending MIDI", "msg", msg)
	if err := d.outPort.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg, err)
	}
	return nil
}

// Listen calls fn, on the driver's goroutine, with every message arriving at the input port, sysex included,
// until stop is called.
func (d *MidiDevice) Listen(fn func(msg midi.Message)) (stop func(), err error) {
	stop, err = midi.ListenTo(d.inPort, func(msg midi.Message, timestampms int32) {
		midiInLog.Debug("Received MIDI", "msg", msg, "timestamp", timestampms)
		fn(msg)
	}, midi.UseSysEx())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", d.inPort, err)
	}
	return stop, nil
}
