package fp16

import (
	midi "gitlab.com/gomidi/midi/v2"

	"github.com/Grissess/pulse-mcu/devices"
)

// Decode classifies one message from the surface. Messages that are not input events are logged and
// reported as false.
//
// A note-off, or a note-on with velocity 0, is read as a release of the same key.
func Decode(msg midi.Message) (devices.Input, bool) {
	var channel, key, velocity uint8
	switch msg.Type() {
	case midi.PitchBendMsg:
		var relative int16
		var absolute uint16
		if ok := msg.GetPitchBend(&channel, &relative, &absolute); !ok {
			midiInLog.Debug("Failed to parse Pitch Bend message", "msg", msg)
			return devices.Input{}, false
		}
		return devices.Input{
			Kind:  devices.FaderMove,
			Slot:  int(channel),
			Value: float64(absolute) / PBEND_MAX,
		}, true

	case midi.NoteOnMsg, midi.NoteOffMsg:
		pressed := msg.GetNoteStart(&channel, &key, &velocity)
		if !pressed && !msg.GetNoteEnd(&channel, &key) {
			midiInLog.Debug("Failed to parse note message", "msg", msg)
			return devices.Input{}, false
		}
		r, ok := layout.role(key)
		if !ok {
			midiInLog.Debug("Unrecognized key", "key", key, "pressed", pressed)
			return devices.Input{}, false
		}
		return devices.Input{
			Kind:    r.kind,
			Slot:    r.slot,
			Pressed: pressed,
			Button:  r.button,
			View:    r.view,
		}, true
	}
	midiInLog.Debug("Unhandled MIDI message", "msg", msg)
	return devices.Input{}, false
}
