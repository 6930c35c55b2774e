package pulse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Grissess/pulse-mcu/audio"
)

func obj(kind audio.Kind, index uint32, name string) audio.Object {
	return audio.Object{ID: audio.ID{Kind: kind, Index: index}, Name: name, Volume: 1}
}

func set(objects ...audio.Object) objectSet {
	s := objectSet{}
	for _, o := range objects {
		s[o.ID] = o
	}
	return s
}

func TestDiffObjects(t *testing.T) {
	speakers := obj(audio.HardwareOut, 0, "speakers")
	music := obj(audio.AppOut, 4, "music")
	mic := obj(audio.HardwareIn, 1, "mic")
	mutedMusic := music
	mutedMusic.Muted = true

	tests := []struct {
		name      string
		prev, cur objectSet
		want      []audio.Event
	}{
		{"unchanged", set(speakers, music), set(speakers, music), nil},
		{"new", set(speakers), set(speakers, music), []audio.Event{
			{Kind: audio.AppOut, Type: audio.EventNew, Index: 4},
		}},
		{"removed", set(speakers, music), set(speakers), []audio.Event{
			{Kind: audio.AppOut, Type: audio.EventRemove, Index: 4},
		}},
		{"changed", set(speakers, music), set(speakers, mutedMusic), []audio.Event{
			{Kind: audio.AppOut, Type: audio.EventChange, Index: 4},
		}},
		{"removals before additions before changes", set(speakers, music), set(mic, mutedMusic), []audio.Event{
			{Kind: audio.HardwareOut, Type: audio.EventRemove, Index: 0},
			{Kind: audio.HardwareIn, Type: audio.EventNew, Index: 1},
			{Kind: audio.AppOut, Type: audio.EventChange, Index: 4},
		}},
		{"same index on another kind", set(obj(audio.HardwareIn, 0, "mic")), set(obj(audio.HardwareOut, 0, "speakers")), []audio.Event{
			{Kind: audio.HardwareIn, Type: audio.EventRemove, Index: 0},
			{Kind: audio.HardwareOut, Type: audio.EventNew, Index: 0},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, diffObjects(tt.prev, tt.cur))
		})
	}
}

// fakeLister serves listings from a mutable object set.
type fakeLister struct {
	mu      sync.Mutex
	objects []audio.Object
	err     error
	calls   int
}

func (f *fakeLister) set(objects ...audio.Object) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects = objects
}

func (f *fakeLister) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeLister) listings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLister) list(ctx context.Context, kind audio.Kind) ([]audio.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []audio.Object
	for _, o := range f.objects {
		if o.ID.Kind == kind {
			out = append(out, o)
		}
	}
	return out, nil
}

func TestTakeObjectsSkipsPeakStreams(t *testing.T) {
	lister := &fakeLister{}
	lister.set(obj(audio.AppIn, 2, "recorder"), obj(audio.AppIn, 3, "peak detect"))
	got, err := takeObjects(context.Background(), lister.list)
	require.NoError(t, err)
	assert.Equal(t, set(obj(audio.AppIn, 2, "recorder")), got)
}

func TestPollEvents(t *testing.T) {
	speakers := obj(audio.HardwareOut, 0, "speakers")
	lister := &fakeLister{}
	lister.set(speakers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan audio.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- pollEvents(ctx, time.Millisecond, lister.list, func(ev audio.Event) { events <- ev })
	}()

	next := func() audio.Event {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(time.Second):
			t.Fatal("no event")
			return audio.Event{}
		}
	}

	// The first listing is the baseline; it reports nothing.
	require.Eventually(t, func() bool { return lister.listings() >= len(audio.Kinds) }, time.Second, time.Millisecond)
	lister.set(speakers, obj(audio.AppOut, 7, "music"))
	assert.Equal(t, audio.Event{Kind: audio.AppOut, Type: audio.EventNew, Index: 7}, next())

	lister.set(speakers)
	assert.Equal(t, audio.Event{Kind: audio.AppOut, Type: audio.EventRemove, Index: 7}, next())

	boom := errors.New("connection reset")
	lister.fail(boom)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("watch did not fail")
	}
}

func TestPollEventsStopsOnCancel(t *testing.T) {
	lister := &fakeLister{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- pollEvents(ctx, time.Millisecond, lister.list, func(audio.Event) {})
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestPollEventsInitialListingFails(t *testing.T) {
	boom := errors.New("refused")
	lister := &fakeLister{err: boom}
	err := pollEvents(context.Background(), time.Millisecond, lister.list, func(audio.Event) {})
	assert.ErrorIs(t, err, boom)
}
