package pulse

import (
	"testing"

	"github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/assert"

	"github.com/Grissess/pulse-mcu/audio"
)

func TestFromSink(t *testing.T) {
	info := &proto.GetSinkInfoReply{
		SinkIndex:         3,
		SinkName:          "alsa_output.usb",
		Mute:              true,
		ChannelVolumes:    proto.ChannelVolumes{0x10000, 0x8000},
		MonitorSourceName: "alsa_output.usb.monitor",
	}
	assert.Equal(t, audio.Object{
		ID:      audio.ID{Kind: audio.HardwareOut, Index: 3},
		Name:    "alsa_output.usb",
		Muted:   true,
		Volume:  0.75,
		Monitor: audio.MonitorRef{Source: "alsa_output.usb.monitor", Stream: audio.NoStream},
	}, fromSink(info))
}

func TestFromSource(t *testing.T) {
	info := &proto.GetSourceInfoReply{
		SourceIndex:       1,
		SourceName:        "alsa_input.mic",
		ChannelVolumes:    proto.ChannelVolumes{0x10000},
		MonitorSourceName: "unused",
	}
	assert.Equal(t, audio.Object{
		ID:      audio.ID{Kind: audio.HardwareIn, Index: 1},
		Name:    "alsa_input.mic",
		Volume:  1,
		Monitor: audio.MonitorRef{Source: "alsa_input.mic", Stream: audio.NoStream},
	}, fromSource(info))
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, average(proto.ChannelVolumes{}))
	assert.Equal(t, float64(0x10000), average(proto.ChannelVolumes{0x10000}))
	assert.Equal(t, 1.5, average([]uint32{1, 2}))
}

func TestFill(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want uint32
	}{
		{"nominal", volumeNorm, 0x10000},
		{"half", 0.5 * volumeNorm, 0x8000},
		{"rounds up", 1.6, 2},
		{"rounds down", 1.4, 1},
		{"negative clamps to silence", -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := make([]uint32, 3)
			fill(cv, tt.v)
			assert.Equal(t, []uint32{tt.want, tt.want, tt.want}, cv)
		})
	}
}

func TestPeak(t *testing.T) {
	_, ok := peak(nil)
	assert.False(t, ok)

	p, ok := peak([]float32{0.25, 0.75, 0.5})
	assert.True(t, ok)
	assert.Equal(t, 0.75, p)
}

func TestOfferKeepsLatest(t *testing.T) {
	ch := make(chan float64, 1)
	offer(ch, 0.1)
	offer(ch, 0.2)
	offer(ch, 0.3)

	assert.Equal(t, 0.3, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected sample %v", v)
	default:
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "sink.monitor", describe(audio.MonitorRef{Source: "sink.monitor", Stream: audio.NoStream}))
	assert.Equal(t, "sink.monitor/12", describe(audio.MonitorRef{Source: "sink.monitor", Stream: 12}))
}
