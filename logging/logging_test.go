package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"testing"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
)

func TestGetReturnsSameLogger(t *testing.T) {
	assert.Same(t, Get(APP), Get(APP))
	assert.NotSame(t, Get(APP), Get(AUDIO))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestHandleOSCSetCategoryLevel(t *testing.T) {
	assert := assert.New(t)
	defer SetCategoryLevel(MIDI_OUT, slog.LevelWarn)

	HandleOSCSetCategoryLevel(osc.NewMessage("/meta/logging/midi_out/level", int32(-4)))
	assert.Equal(slog.LevelDebug, CategoryLevel(MIDI_OUT))
	assert.True(Get(MIDI_OUT).Enabled(context.Background(), slog.LevelDebug))

	// Wrong type, unknown category and foreign routes leave the level alone.
	HandleOSCSetCategoryLevel(osc.NewMessage("/meta/logging/midi_out/level", "8"))
	HandleOSCSetCategoryLevel(osc.NewMessage("/meta/logging/nope/level", int32(8)))
	HandleOSCSetCategoryLevel(osc.NewMessage("/strip/1/fader", float32(0.5)))
	HandleOSCSetCategoryLevel(osc.NewMessage("/meta/logging/midi_out/level"))
	assert.Equal(slog.LevelDebug, CategoryLevel(MIDI_OUT))
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, ok := ParseCategory(string(c))
		assert.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ParseCategory("nope")
	assert.False(t, ok)
}

func TestIsClosed(t *testing.T) {
	assert.True(t, isClosed(net.ErrClosed))
	assert.True(t, isClosed(fmt.Errorf("read udp: %w", net.ErrClosed)))
	assert.False(t, isClosed(errors.New("use of closed network connection")))
	assert.False(t, isClosed(errors.New("connection refused")))
}

func TestListenOSCStops(t *testing.T) {
	stop, err := ListenOSC("127.0.0.1:0")
	if !assert.NoError(t, err) {
		return
	}
	stop()
}
