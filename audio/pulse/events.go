package pulse

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Grissess/pulse-mcu/audio"
)

// DefaultPollInterval is how often WatchEvents re-lists the server's objects.
const DefaultPollInterval = 250 * time.Millisecond

type listFunc func(ctx context.Context, kind audio.Kind) ([]audio.Object, error)

// objectSet is one listing of every tracked kind, peak streams left out.
type objectSet map[audio.ID]audio.Object

func takeObjects(ctx context.Context, list listFunc) (objectSet, error) {
	set := objectSet{}
	for _, kind := range audio.Kinds {
		objects, err := list(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, o := range objects {
			if strings.EqualFold(o.Name, audio.PeakStreamName) {
				continue
			}
			set[o.ID] = o
		}
	}
	return set, nil
}

// diffObjects returns the events that turn prev into cur: removals first, then new objects, then changes,
// each ordered by kind and index.
func diffObjects(prev, cur objectSet) []audio.Event {
	var removed, added, changed []audio.Event
	for id := range prev {
		if _, ok := cur[id]; !ok {
			removed = append(removed, audio.Event{Kind: id.Kind, Type: audio.EventRemove, Index: id.Index})
		}
	}
	for id, o := range cur {
		old, ok := prev[id]
		switch {
		case !ok:
			added = append(added, audio.Event{Kind: id.Kind, Type: audio.EventNew, Index: id.Index})
		case old != o:
			changed = append(changed, audio.Event{Kind: id.Kind, Type: audio.EventChange, Index: id.Index})
		}
	}
	var events []audio.Event
	for _, group := range [][]audio.Event{removed, added, changed} {
		slices.SortFunc(group, func(a, b audio.Event) int {
			if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
				return c
			}
			return cmp.Compare(a.Index, b.Index)
		})
		events = append(events, group...)
	}
	return events
}

// WatchEvents reports the server's object changes as events. It polls listings over the one connection the
// Server holds and reports the difference between consecutive listings.
func (s *Server) WatchEvents(ctx context.Context, fn func(audio.Event)) error {
	return pollEvents(ctx, s.pollInterval, s.List, fn)
}

func pollEvents(ctx context.Context, period time.Duration, list listFunc, fn func(audio.Event)) error {
	prev, err := takeObjects(ctx, list)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("event stream: %w", err)
	}
	audioLog.Info("Watching audio events", "objects", len(prev), "poll", period)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		cur, err := takeObjects(ctx, list)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event stream: %w", err)
		}
		for _, ev := range diffObjects(prev, cur) {
			fn(ev)
		}
		prev = cur
	}
}
