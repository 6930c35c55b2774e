// Package audiotest provides an in-memory audio.Server that records every call made to it.
package audiotest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Grissess/pulse-mcu/audio"
)

type peakWatch struct {
	monitor audio.MonitorRef
	samples chan float64
	done    chan struct{}
}

// Server implements audio.Server over a mutable in-memory object list.
type Server struct {
	mu sync.Mutex

	objects []audio.Object
	calls   []string
	err     error

	events  chan audio.Event
	watches map[*peakWatch]struct{}
}

func NewServer(objects ...audio.Object) *Server {
	s := &Server{
		events:  make(chan audio.Event, 64),
		watches: map[*peakWatch]struct{}{},
	}
	for _, o := range objects {
		s.Add(o)
	}
	return s
}

// Add appends an object, keeping server order within its kind.
func (s *Server) Add(o audio.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, o)
}

// Remove deletes an object; later queries for it report audio.ErrNotFound.
func (s *Server) Remove(id audio.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.objects {
		if o.ID == id {
			s.objects = append(s.objects[:i:i], s.objects[i+1:]...)
			return
		}
	}
}

// Modify edits an object in place without recording a call.
func (s *Server) Modify(id audio.ID, edit func(*audio.Object)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.find(id); o != nil {
		edit(o)
	}
}

// SetError makes every subsequent call fail with err; nil restores normal operation.
func (s *Server) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the call log, e.g. "list hardware-out", "get app-out#4", "mute hardware-out#1 true",
// "peaks start mon.0/4294967295".
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Emit queues an event for WatchEvents.
func (s *Server) Emit(ev audio.Event) {
	s.events <- ev
}

// ActiveWatches returns the monitors currently being watched for peaks.
func (s *Server) ActiveWatches() []audio.MonitorRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []audio.MonitorRef{}
	for w := range s.watches {
		out = append(out, w.monitor)
	}
	return out
}

// Feed delivers a peak sample to every active watch of the monitor source and reports how many received it.
// It blocks until each watch has handed the sample to its callback or stopped.
func (s *Server) Feed(source string, sample float64) int {
	s.mu.Lock()
	targets := []*peakWatch{}
	for w := range s.watches {
		if w.monitor.Source == source {
			targets = append(targets, w)
		}
	}
	s.mu.Unlock()
	n := 0
	for _, w := range targets {
		select {
		case w.samples <- sample:
			n++
		case <-w.done:
		}
	}
	return n
}

func (s *Server) record(format string, args ...any) error {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	return s.err
}

func (s *Server) find(id audio.ID) *audio.Object {
	for i := range s.objects {
		if s.objects[i].ID == id {
			return &s.objects[i]
		}
	}
	return nil
}

func (s *Server) List(ctx context.Context, kind audio.Kind) ([]audio.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list %s", kind); err != nil {
		return nil, err
	}
	out := []audio.Object{}
	for _, o := range s.objects {
		if o.ID.Kind == kind {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Server) Get(ctx context.Context, id audio.ID) (audio.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get %s", id); err != nil {
		return audio.Object{}, err
	}
	o := s.find(id)
	if o == nil {
		return audio.Object{}, audio.ErrNotFound
	}
	return *o, nil
}

func (s *Server) SetVolume(ctx context.Context, id audio.ID, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("volume %s %.4f", id, volume); err != nil {
		return err
	}
	o := s.find(id)
	if o == nil {
		return audio.ErrNotFound
	}
	o.Volume = volume
	return nil
}

func (s *Server) SetMute(ctx context.Context, id audio.ID, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("mute %s %t", id, muted); err != nil {
		return err
	}
	o := s.find(id)
	if o == nil {
		return audio.ErrNotFound
	}
	o.Muted = muted
	return nil
}

func (s *Server) WatchEvents(ctx context.Context, fn func(audio.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			fn(ev)
		}
	}
}

func (s *Server) WatchPeaks(ctx context.Context, monitor audio.MonitorRef, rate int, fn func(float64)) error {
	w := &peakWatch{monitor: monitor, samples: make(chan float64), done: make(chan struct{})}
	s.mu.Lock()
	if err := s.record("peaks start %s/%d", monitor.Source, monitor.Stream); err != nil {
		s.mu.Unlock()
		return err
	}
	s.watches[w] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		close(w.done)
		delete(s.watches, w)
		s.record("peaks stop %s/%d", monitor.Source, monitor.Stream)
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-w.samples:
			fn(v)
		}
	}
}
