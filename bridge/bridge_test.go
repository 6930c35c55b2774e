package bridge

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	midi "gitlab.com/gomidi/midi/v2"

	"github.com/Grissess/pulse-mcu/audio"
	"github.com/Grissess/pulse-mcu/audio/audiotest"
	"github.com/Grissess/pulse-mcu/devices"
	devtest "github.com/Grissess/pulse-mcu/devices/devicestesting"
	"github.com/Grissess/pulse-mcu/devices/fp16"
	"github.com/Grissess/pulse-mcu/view"
)

var testOptions = Options{PeakRate: 25, Heartbeat: 10 * time.Millisecond, InitialView: view.All}

func obj(kind audio.Kind, index uint32, name string) audio.Object {
	return audio.Object{
		ID:      audio.ID{Kind: kind, Index: index},
		Name:    name,
		Volume:  1,
		Monitor: audio.MonitorRef{Source: name + ".monitor", Stream: audio.NoStream},
	}
}

// start runs a bridge until the test ends and returns a channel with its result.
func start(t *testing.T, b *Bridge) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result <- b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("bridge did not stop")
		}
	})
	return cancel, result
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func sent(port *devtest.MockMIDIPort, want []byte) bool {
	for _, b := range port.GetSentBytes() {
		if bytes.Equal(b, want) {
			return true
		}
	}
	return false
}

func count(calls []string, want string) int {
	n := 0
	for _, c := range calls {
		if c == want {
			n++
		}
	}
	return n
}

func calls(server *audiotest.Server, prefix string) []string {
	out := []string{}
	for _, c := range server.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func TestFP16Session(t *testing.T) {
	server := audiotest.NewServer(obj(audio.HardwareOut, 0, "speakers"))
	d, port := devtest.NewTestMidiDevice(t)
	b := New(server, fp16.New(d), testOptions)
	cancel, result := start(t, b)

	speakersText := append([]byte{0xf0, 0x00, 0x01, 0x06, 0x16, 0x12, 0x00, 0x01, 0x00}, "speakers \xf7"...)
	eventually(t, func() bool { return sent(port, speakersText) }, "strip 0 shows speakers")
	eventually(t, func() bool { return sent(port, []byte{0xa0, 0x00, 0x00}) }, "heartbeat sent")

	// Slot 5 is empty; its fader frame is decoded and then ignored.
	port.SimulateReceive(midi.Pitchbend(5, 8191))
	port.SimulateReceive(midi.Pitchbend(0, 8191))
	eventually(t, func() bool { return len(calls(server, "volume ")) > 0 }, "volume set")
	assert.Equal(t, []string{"volume hardware-out#0 2.6102"}, calls(server, "volume "))

	port.SimulateReceive(midi.NoteOn(0, 0x10, 127))
	port.SimulateReceive(midi.NoteOff(0, 0x10))
	eventually(t, func() bool { return sent(port, []byte{0x90, 0x10, 0x7f}) }, "mute lamp lit")
	assert.Equal(t, []string{"mute hardware-out#0 true"}, calls(server, "mute "))

	cancel()
	assert.NoError(t, <-result)
	assert.Empty(t, server.ActiveWatches())
}

func TestSessionFollowsEvents(t *testing.T) {
	speakers := obj(audio.HardwareOut, 0, "speakers")
	server := audiotest.NewServer(speakers, obj(audio.AppOut, 3, "music"))
	panel := devtest.NewPanel(4)
	start(t, New(server, panel, testOptions))

	eventually(t, func() bool { return slices.Contains(panel.Calls(), `text 0 [1] "speakers"`) }, "initial render")

	server.Modify(speakers.ID, func(o *audio.Object) { o.Muted = true })
	server.Emit(audio.Event{Kind: audio.HardwareOut, Type: audio.EventChange, Index: 0})
	eventually(t, func() bool { return slices.Contains(panel.Calls(), "mute 0 true") }, "mute rendered")

	server.Add(obj(audio.AppIn, 9, "recorder"))
	server.Emit(audio.Event{Kind: audio.AppIn, Type: audio.EventNew, Index: 9})
	eventually(t, func() bool { return slices.Contains(panel.Calls(), `text 1 [1] "recorder"`) }, "new object shown")
}

func TestViewButton(t *testing.T) {
	server := audiotest.NewServer(obj(audio.HardwareOut, 0, "speakers"), obj(audio.AppOut, 3, "music"))
	panel := devtest.NewPanel(4)
	start(t, New(server, panel, Options{InitialView: view.HardwareOut}))

	eventually(t, func() bool { return slices.Contains(panel.Calls(), `text 0 [1] "speakers"`) }, "initial render")
	assert.NotContains(t, panel.Calls(), `text 0 [1] "music"`)

	panel.Press(devices.Input{Kind: devices.ButtonPress, Slot: -1, Pressed: true, Button: "vca", View: "app-out"})
	eventually(t, func() bool { return slices.Contains(panel.Calls(), `text 0 [1] "music"`) }, "view switched")
	eventually(t, func() bool { return count(panel.Calls(), "meter 3 none 0.0000") == 2 }, "view rendered")

	// A bad view name and a solo press change nothing.
	panel.ResetCalls()
	panel.Press(devices.Input{Kind: devices.ButtonPress, Slot: -1, Pressed: true, Button: "view", View: "sinks"})
	panel.Press(devices.Input{Kind: devices.SoloPress, Slot: 0, Pressed: true})
	panel.Press(devices.Input{Kind: devices.FaderMove, Slot: 3, Value: 1})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, panel.Calls())
	assert.Empty(t, calls(server, "volume "))
}

func TestSurfaceFailureEndsSession(t *testing.T) {
	server := audiotest.NewServer(obj(audio.HardwareOut, 0, "speakers"))
	panel := devtest.NewPanel(2)
	_, result := start(t, New(server, panel, testOptions))

	eventually(t, func() bool { return panel.Heartbeats() > 0 }, "heartbeat")
	boom := errors.New("unplugged")
	panel.SetError(boom)

	select {
	case err := <-result:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not fail")
	}
}

func TestAudioFailureEndsSession(t *testing.T) {
	server := audiotest.NewServer(obj(audio.HardwareOut, 0, "speakers"))
	boom := errors.New("connection refused")
	server.SetError(boom)
	_, result := start(t, New(server, devtest.NewPanel(2), testOptions))

	select {
	case err := <-result:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not fail")
	}
}

func TestListenFailure(t *testing.T) {
	panel := devtest.NewPanel(2)
	_, err := panel.Listen(func(devices.Input) {})
	require.NoError(t, err)

	err = New(audiotest.NewServer(), panel, testOptions).Run(context.Background())
	assert.Error(t, err)
}
