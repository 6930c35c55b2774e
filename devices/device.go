// Package devices holds what every control surface shares: the Panel that strips render to, the Input
// events a surface reports, and the MIDI transport.
package devices

// BaseTypes is the set of argument types surface bindings convert inbound values to.
type BaseTypes interface {
	int64 | float64 | string | bool
}

// MeterKind selects how a strip's meter is drawn.
type MeterKind uint8

const (
	MeterSlit MeterKind = iota
	MeterPan
	MeterBar
	MeterWidth
	MeterNone
)

func (k MeterKind) String() string {
	switch k {
	case MeterSlit:
		return "slit"
	case MeterPan:
		return "pan"
	case MeterBar:
		return "bar"
	case MeterWidth:
		return "width"
	default:
		return "none"
	}
}

type Align uint8

const (
	AlignCenter Align = iota
	AlignLeft
	AlignRight
)

// Panel is the per-strip output side of a control surface. Slots are numbered from 0; writes to a slot the
// surface doesn't have are errors. Every error is a transport failure.
type Panel interface {
	// SetFaderPosition moves the motorized fader to unit in [0,1]; values outside are clamped.
	SetFaderPosition(slot int, unit float64) error
	SetSoloLamp(slot int, on bool) error
	SetMuteLamp(slot int, on bool) error
	SetSelectLamp(slot int, on bool) error
	// SetText writes text over the given display lines of the strip, continuing from one line to the next.
	SetText(slot int, lines []int, text string, align Align, highlight bool) error
	SetMeter(slot int, kind MeterKind, unit float64) error
}

type InputKind uint8

const (
	FaderMove InputKind = iota
	FaderTouch
	SoloPress
	MutePress
	SelectPress
	ButtonPress
)

func (k InputKind) String() string {
	switch k {
	case FaderMove:
		return "fader-move"
	case FaderTouch:
		return "fader-touch"
	case SoloPress:
		return "solo"
	case MutePress:
		return "mute"
	case SelectPress:
		return "select"
	case ButtonPress:
		return "button"
	default:
		return "unknown"
	}
}

// Input is one event from the surface.
type Input struct {
	Kind InputKind
	Slot int
	// Pressed is set for button presses and fader touches, cleared for releases.
	Pressed bool
	// Value is the fader position in [0,1] for FaderMove.
	Value float64
	// Button names the control for ButtonPress.
	Button string
	// View, when set, is the name of the object kind a ButtonPress asks the strips to show.
	View string
}
