package fp16

import (
	"fmt"

	"github.com/Grissess/pulse-mcu/devices"
)

const (
	STRIPS    = 16
	PBEND_MAX = 16383
	CC_MAX    = 127

	// PORT_NAME prefixes the names of the FP16's MIDI ports; the second port carries nothing we use.
	PORT_NAME = "PreSonus FP16:PreSonus FP16 Port 1"
)

// Meter controllers. Strips 0-7 and 8-15 each have their own run.
const (
	CC_B1_METER_BASE      = 0x30
	CC_B1_METER_TYPE_BASE = 0x38
	CC_B2_METER_BASE      = 0x40
	CC_B2_METER_TYPE_BASE = 0x48
)

type SysExHeader []byte

var HeaderText SysExHeader = []byte{0x00, 0x01, 0x06, 0x16}

const (
	SYSEX_TEXT     = 0x12 // followed by strip, line, mode, chars...
	TEXT_HIGHLIGHT = 0x04
)

// LINE_WIDTH is the width, in characters, of each line of a strip's display.
var LINE_WIDTH = []int{8, 9, 5}

// Button keys, all on channel 0. Shifted functions are not distinguished by the surface.
const (
	ARM        = 0x00
	SOLO_CLEAR = 0x01
	MUTE_CLEAR = 0x02
	BYPASS     = 0x03
	MACRO      = 0x04
	LINK       = 0x05
	SHIFT_R    = 0x06
	SELECT_S8  = 0x07

	SOLO_B1_BASE = 0x08
	MUTE_B1_BASE = 0x10
	SELECT_BASE  = 0x18
	FX_KNOB      = 0x20

	TRACK  = 0x28
	SENDS  = 0x29
	PAN    = 0x2A
	PLUGIN = 0x2B

	PREV = 0x2E
	NEXT = 0x2F

	CHANNEL = 0x36
	ZOOM    = 0x37
	SCROLL  = 0x38
	BANK    = 0x39
	MASTER  = 0x3A
	CLICK   = 0x3B
	SECTION = 0x3C
	MARKER  = 0x3D

	AUDIO = 0x3E
	VI    = 0x3F
	BUS   = 0x40
	VCA   = 0x41
	ALL   = 0x42

	SHIFT_L = 0x46

	READ  = 0x4A
	WRITE = 0x4B
	TRIM  = 0x4C
	TOUCH = 0x4D
	LATCH = 0x4E
	OFF   = 0x4F

	SOLO_B2_BASE = 0x50
	JOG_KNOB     = 0x53
	LOOP         = 0x56
	SOLO_S11     = 0x58
	SOLO_S14     = 0x59

	BACK    = 0x5B
	FORWARD = 0x5C
	STOP    = 0x5D
	PLAY    = 0x5E
	RECORD  = 0x5F

	FADER_TOUCH_BASE = 0x68
	MUTE_B2_BASE     = 0x78
)

var buttonNames = map[uint8]string{
	ARM:        "arm",
	SOLO_CLEAR: "solo-clear",
	MUTE_CLEAR: "mute-clear",
	BYPASS:     "bypass",
	MACRO:      "macro",
	LINK:       "link",
	SHIFT_R:    "shift-right",
	FX_KNOB:    "fx-knob",
	TRACK:      "track",
	SENDS:      "sends",
	PAN:        "pan",
	PLUGIN:     "plugin",
	PREV:       "prev",
	NEXT:       "next",
	CHANNEL:    "channel",
	ZOOM:       "zoom",
	SCROLL:     "scroll",
	BANK:       "bank",
	MASTER:     "master",
	CLICK:      "click",
	SECTION:    "section",
	MARKER:     "marker",
	AUDIO:      "audio",
	VI:         "vi",
	BUS:        "bus",
	VCA:        "vca",
	ALL:        "all",
	SHIFT_L:    "shift-left",
	READ:       "read",
	WRITE:      "write",
	TRIM:       "trim",
	TOUCH:      "touch",
	LATCH:      "latch",
	OFF:        "off",
	JOG_KNOB:   "jog-knob",
	LOOP:       "loop",
	BACK:       "back",
	FORWARD:    "forward",
	STOP:       "stop",
	PLAY:       "play",
	RECORD:     "record",
}

// viewButtons maps the view-selection buttons to the object kind they show.
var viewButtons = map[uint8]string{
	AUDIO: "hardware-in",
	VI:    "hardware-out",
	BUS:   "app-in",
	VCA:   "app-out",
	ALL:   "all",
}

type keyRole struct {
	kind   devices.InputKind
	slot   int
	button string
	view   string
}

// Layout holds the per-strip key assignments, with the surface's exceptions applied.
type Layout struct {
	Solo   [STRIPS]uint8
	Mute   [STRIPS]uint8
	Select [STRIPS]uint8
	Touch  [STRIPS]uint8

	roles map[uint8]keyRole
}

var layout = newLayout()

func newLayout() *Layout {
	l := &Layout{roles: map[uint8]keyRole{}}
	for i := 0; i < STRIPS; i++ {
		if i < 8 {
			l.Solo[i] = uint8(SOLO_B1_BASE + i)
			l.Mute[i] = uint8(MUTE_B1_BASE + i)
		} else {
			l.Solo[i] = uint8(SOLO_B2_BASE + i - 8)
			l.Mute[i] = uint8(MUTE_B2_BASE + i - 8)
		}
		l.Select[i] = uint8(SELECT_BASE + i)
		l.Touch[i] = uint8(FADER_TOUCH_BASE + i)
	}
	// These strips' nominal keys belong to the FX knob, the jog knob and the loop button.
	l.Select[8] = SELECT_S8
	l.Solo[11] = SOLO_S11
	l.Solo[14] = SOLO_S14

	// Lowest priority first; later assignments win a shared key.
	for key, name := range buttonNames {
		l.roles[key] = keyRole{kind: devices.ButtonPress, slot: -1, button: name, view: viewButtons[key]}
	}
	for i := STRIPS - 1; i >= 0; i-- {
		l.roles[l.Select[i]] = keyRole{kind: devices.SelectPress, slot: i}
	}
	for i := STRIPS - 1; i >= 0; i-- {
		l.roles[l.Mute[i]] = keyRole{kind: devices.MutePress, slot: i}
	}
	for i := STRIPS - 1; i >= 0; i-- {
		l.roles[l.Solo[i]] = keyRole{kind: devices.SoloPress, slot: i}
	}
	for i := STRIPS - 1; i >= 0; i-- {
		l.roles[l.Touch[i]] = keyRole{kind: devices.FaderTouch, slot: i}
	}
	return l
}

// role classifies a key. Keys outside every table report false.
func (l *Layout) role(key uint8) (keyRole, bool) {
	r, ok := l.roles[key]
	return r, ok
}

// meterCCs returns the value and type controllers of a strip's meter.
func meterCCs(slot int) (value, kind uint8) {
	if slot < 8 {
		return uint8(CC_B1_METER_BASE + slot), uint8(CC_B1_METER_TYPE_BASE + slot)
	}
	return uint8(CC_B2_METER_BASE + slot - 8), uint8(CC_B2_METER_TYPE_BASE + slot - 8)
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= STRIPS {
		return fmt.Errorf("strip %d out of range %d", slot, STRIPS)
	}
	return nil
}
