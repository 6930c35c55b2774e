// Package audio tracks the audio server's controllable endpoints and streams.
//
// The Model keeps a snapshot of every audio object of the four tracked kinds and keeps it current from the
// server's event stream. Model is not safe for concurrent use; the bridge confines it to its control loop.
package audio

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Server when the object a query or mutation targets no longer exists.
var ErrNotFound = errors.New("audio object not found")

type Kind uint8

const (
	KindOther   Kind = iota // facilities the model does not track: clients, modules, cards...
	HardwareIn              // sources
	HardwareOut             // sinks
	AppIn                   // source outputs (recording streams)
	AppOut                  // sink inputs (playback streams)
)

// Kinds lists the tracked kinds in snapshot order.
var Kinds = []Kind{HardwareIn, HardwareOut, AppIn, AppOut}

func (k Kind) String() string {
	switch k {
	case HardwareIn:
		return "hardware-in"
	case HardwareOut:
		return "hardware-out"
	case AppIn:
		return "app-in"
	case AppOut:
		return "app-out"
	default:
		return "other"
	}
}

// ID identifies an object. The server numbers each kind separately, so the index alone is ambiguous.
type ID struct {
	Kind  Kind
	Index uint32
}

func (id ID) String() string {
	return fmt.Sprintf("%s#%d", id.Kind, id.Index)
}

// NoStream marks a MonitorRef that records the whole source rather than a single stream on it.
const NoStream = ^uint32(0)

// MonitorRef names the source whose samples represent an object's signal level.
//
// For a sink this is the sink's monitor source; for a playback stream it is the monitor source of the sink the
// stream plays to, narrowed to that stream.
type MonitorRef struct {
	Source string
	Stream uint32
}

// State is an object's place in its lifecycle: Active while tracked, then Closed.
type State uint8

const (
	Active State = iota
	// Closed is terminal: the object vanished from the server and is dropped from the snapshot. If it comes
	// back the server gives it a new index.
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Object is the model's record of one endpoint or stream.
type Object struct {
	ID      ID
	Name    string
	AppName string // empty for hardware endpoints
	Muted   bool
	Volume  float64 // linear, 1.0 is the server's nominal volume
	Monitor MonitorRef
	State   State
}

type EventType uint8

const (
	EventNew EventType = iota
	EventChange
	EventRemove
)

func (t EventType) String() string {
	switch t {
	case EventNew:
		return "new"
	case EventChange:
		return "change"
	case EventRemove:
		return "remove"
	default:
		return fmt.Sprintf("EventType(%d)", uint8(t))
	}
}

// Event is one notification from the server's event stream.
type Event struct {
	Kind  Kind
	Type  EventType
	Index uint32
}

func (e Event) ID() ID {
	return ID{Kind: e.Kind, Index: e.Index}
}

// Server is the audio server connection the model and the peak meters are driven from.
//
// Any error other than ErrNotFound is a transport failure.
type Server interface {
	// List returns every object of the given kind, in server order.
	List(ctx context.Context, kind Kind) ([]Object, error)
	// Get queries a single object.
	Get(ctx context.Context, id ID) (Object, error)
	// WatchEvents calls fn for each server event until ctx is done or the connection fails.
	WatchEvents(ctx context.Context, fn func(Event)) error
	// WatchPeaks calls fn with each peak sample, in [0,1], of the monitor at rate samples per second until ctx
	// is done. A watch cannot be resumed once it returns.
	WatchPeaks(ctx context.Context, monitor MonitorRef, rate int, fn func(float64)) error
	SetVolume(ctx context.Context, id ID, volume float64) error
	SetMute(ctx context.Context, id ID, muted bool) error
}
