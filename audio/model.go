package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Grissess/pulse-mcu/logging"
)

var audioLog *slog.Logger

func init() {
	audioLog = logging.Get(logging.AUDIO)
}

// PeakStreamName is the name the server gives the recording streams used for peak detection. They churn as
// strips are rebound and are never shown.
const PeakStreamName = "Peak detect"

func uninteresting(o Object) bool {
	return strings.EqualFold(o.Name, PeakStreamName)
}

// Listener is told when the snapshot changes.
type Listener interface {
	// SnapshotReplaced is called after the whole snapshot was rebuilt or an object left it.
	SnapshotReplaced(ctx context.Context) error
	// ObjectChanged is called after a single tracked object was re-queried.
	ObjectChanged(ctx context.Context, id ID) error
}

// Model is the snapshot of audio objects.
type Model struct {
	server   Server
	listener Listener

	order   []ID
	objects map[ID]*Object
	closed  map[ID]Object
}

func NewModel(server Server) *Model {
	return &Model{
		server:  server,
		objects: map[ID]*Object{},
		closed:  map[ID]Object{},
	}
}

// SetListener registers the listener notified by HandleEvent.
func (m *Model) SetListener(l Listener) {
	m.listener = l
}

// Refresh rebuilds the snapshot from a full listing of every tracked kind. The new snapshot replaces the
// old one only once all listings succeeded.
func (m *Model) Refresh(ctx context.Context) error {
	order := []ID{}
	objects := map[ID]*Object{}
	for _, kind := range Kinds {
		list, err := m.server.List(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s objects: %w", kind, err)
		}
		for _, o := range list {
			if uninteresting(o) {
				continue
			}
			if _, dup := objects[o.ID]; dup {
				continue
			}
			o := o
			o.State = Active
			objects[o.ID] = &o
			order = append(order, o.ID)
		}
	}
	closed := map[ID]Object{}
	for id, o := range m.objects {
		if _, ok := objects[id]; !ok {
			o.State = Closed
			closed[id] = *o
		}
	}
	m.order, m.objects, m.closed = order, objects, closed
	audioLog.Debug("Snapshot refreshed", "objects", len(order), "closed", len(closed))
	return nil
}

// Objects returns the snapshot in order: kind by kind, each in server order.
func (m *Model) Objects() []Object {
	out := make([]Object, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.objects[id])
	}
	return out
}

func (m *Model) Lookup(id ID) (Object, bool) {
	o, ok := m.objects[id]
	if !ok {
		return Object{}, false
	}
	return *o, true
}

// Closed returns the last record of an object that left the snapshot since the previous Refresh. Its State
// is Closed.
func (m *Model) Closed(id ID) (Object, bool) {
	o, ok := m.closed[id]
	return o, ok
}

func (m *Model) Len() int {
	return len(m.order)
}

// HandleEvent applies one server event to the snapshot and tells the listener what changed.
//
// Anything but a change event rebuilds the whole snapshot. A change event for an object the model does not
// track (peak streams, clients, modules) is ignored.
func (m *Model) HandleEvent(ctx context.Context, ev Event) error {
	audioLog.Debug("Audio event", "kind", ev.Kind, "type", ev.Type, "index", ev.Index)
	if ev.Type != EventChange {
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		return m.snapshotReplaced(ctx)
	}
	id := ev.ID()
	if _, ok := m.objects[id]; !ok {
		return nil
	}
	alive, err := m.Update(ctx, id)
	if err != nil {
		return err
	}
	if !alive {
		return m.snapshotReplaced(ctx)
	}
	if m.listener != nil {
		return m.listener.ObjectChanged(ctx, id)
	}
	return nil
}

func (m *Model) snapshotReplaced(ctx context.Context) error {
	if m.listener == nil {
		return nil
	}
	return m.listener.SnapshotReplaced(ctx)
}

// Update re-queries a single object. It reports false, with a nil error, if the object no longer exists; the
// object is then closed and dropped from the snapshot.
func (m *Model) Update(ctx context.Context, id ID) (bool, error) {
	o, ok := m.objects[id]
	if !ok {
		return false, nil
	}
	fresh, err := m.server.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		m.close(id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query %s: %w", id, err)
	}
	fresh.ID, fresh.State = id, Active
	*o = fresh
	return true, nil
}

func (m *Model) close(id ID) {
	o, ok := m.objects[id]
	if !ok {
		return
	}
	o.State = Closed
	m.closed[id] = *o
	delete(m.objects, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	audioLog.Info("Audio object closed", "id", id, "name", o.Name)
}

// SetVolume sets the object's linear volume and re-queries it. It reports false if the object is gone.
func (m *Model) SetVolume(ctx context.Context, id ID, volume float64) (bool, error) {
	return m.mutate(ctx, id, "set volume", func() error {
		return m.server.SetVolume(ctx, id, volume)
	})
}

// SetMuted mutes or unmutes the object and re-queries it. It reports false if the object is gone.
func (m *Model) SetMuted(ctx context.Context, id ID, muted bool) (bool, error) {
	return m.mutate(ctx, id, "set mute", func() error {
		return m.server.SetMute(ctx, id, muted)
	})
}

func (m *Model) mutate(ctx context.Context, id ID, what string, call func() error) (bool, error) {
	if _, ok := m.objects[id]; !ok {
		return false, nil
	}
	err := call()
	if errors.Is(err, ErrNotFound) {
		m.close(id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s on %s: %w", what, id, err)
	}
	return m.Update(ctx, id)
}
