// Package pulse implements audio.Server on a PulseAudio connection.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"github.com/Grissess/pulse-mcu/audio"
	"github.com/Grissess/pulse-mcu/logging"
)

var audioLog *slog.Logger

func init() {
	audioLog = logging.Get(logging.AUDIO)
}

const (
	volumeNorm = 0x10000
	undefined  = ^uint32(0)

	// How often a peak watch checks that its record stream is still running.
	streamCheck = 500 * time.Millisecond
)

type Server struct {
	client       *pulse.Client
	pollInterval time.Duration
}

var _ audio.Server = (*Server)(nil)

// Dial connects to the user's PulseAudio server as the named client. WatchEvents re-lists objects every
// poll; zero means DefaultPollInterval.
func Dial(clientName string, poll time.Duration) (*Server, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName(clientName))
	if err != nil {
		return nil, fmt.Errorf("connect to pulseaudio: %w", err)
	}
	audioLog.Info("Connected to audio server", "client", clientName)
	return &Server{client: c, pollInterval: poll}, nil
}

func (s *Server) Close() {
	s.client.Close()
}

// request runs one protocol request, unless ctx is already done.
func (s *Server) request(ctx context.Context, req proto.RequestArgs, rpl proto.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.client.RawRequest(req, rpl)
	if errors.Is(err, proto.ErrNoSuchEntity) {
		return fmt.Errorf("%w: %v", audio.ErrNotFound, err)
	}
	return err
}

func (s *Server) List(ctx context.Context, kind audio.Kind) ([]audio.Object, error) {
	var out []audio.Object
	switch kind {
	case audio.HardwareIn:
		var rpl proto.GetSourceInfoListReply
		if err := s.request(ctx, &proto.GetSourceInfoList{}, &rpl); err != nil {
			return nil, fmt.Errorf("list sources: %w", err)
		}
		for _, info := range rpl {
			out = append(out, fromSource(info))
		}
	case audio.HardwareOut:
		var rpl proto.GetSinkInfoListReply
		if err := s.request(ctx, &proto.GetSinkInfoList{}, &rpl); err != nil {
			return nil, fmt.Errorf("list sinks: %w", err)
		}
		for _, info := range rpl {
			out = append(out, fromSink(info))
		}
	case audio.AppIn:
		var rpl proto.GetSourceOutputInfoListReply
		if err := s.request(ctx, &proto.GetSourceOutputInfoList{}, &rpl); err != nil {
			return nil, fmt.Errorf("list source outputs: %w", err)
		}
		for _, info := range rpl {
			o, err := s.fromSourceOutput(ctx, info)
			if errors.Is(err, audio.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	case audio.AppOut:
		var rpl proto.GetSinkInputInfoListReply
		if err := s.request(ctx, &proto.GetSinkInputInfoList{}, &rpl); err != nil {
			return nil, fmt.Errorf("list sink inputs: %w", err)
		}
		for _, info := range rpl {
			o, err := s.fromSinkInput(ctx, info)
			if errors.Is(err, audio.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	default:
		return nil, fmt.Errorf("list %s: untracked kind", kind)
	}
	return out, nil
}

func (s *Server) Get(ctx context.Context, id audio.ID) (audio.Object, error) {
	switch id.Kind {
	case audio.HardwareIn:
		var rpl proto.GetSourceInfoReply
		if err := s.request(ctx, &proto.GetSourceInfo{SourceIndex: id.Index}, &rpl); err != nil {
			return audio.Object{}, fmt.Errorf("get %s: %w", id, err)
		}
		return fromSource(&rpl), nil
	case audio.HardwareOut:
		var rpl proto.GetSinkInfoReply
		if err := s.request(ctx, &proto.GetSinkInfo{SinkIndex: id.Index}, &rpl); err != nil {
			return audio.Object{}, fmt.Errorf("get %s: %w", id, err)
		}
		return fromSink(&rpl), nil
	case audio.AppIn:
		var rpl proto.GetSourceOutputInfoReply
		if err := s.request(ctx, &proto.GetSourceOutputInfo{SourceOutpuIndex: id.Index}, &rpl); err != nil {
			return audio.Object{}, fmt.Errorf("get %s: %w", id, err)
		}
		return s.fromSourceOutput(ctx, &rpl)
	case audio.AppOut:
		var rpl proto.GetSinkInputInfoReply
		if err := s.request(ctx, &proto.GetSinkInputInfo{SinkInputIndex: id.Index}, &rpl); err != nil {
			return audio.Object{}, fmt.Errorf("get %s: %w", id, err)
		}
		return s.fromSinkInput(ctx, &rpl)
	default:
		return audio.Object{}, fmt.Errorf("get %s: %w", id, audio.ErrNotFound)
	}
}

// SetVolume sets every channel of the object to volume.
func (s *Server) SetVolume(ctx context.Context, id audio.ID, volume float64) error {
	channels, err := s.channels(ctx, id)
	if err != nil {
		return err
	}
	cv := make(proto.ChannelVolumes, channels)
	fill(cv, volume*volumeNorm)

	var req proto.RequestArgs
	switch id.Kind {
	case audio.HardwareIn:
		req = &proto.SetSourceVolume{SourceIndex: id.Index, ChannelVolumes: cv}
	case audio.HardwareOut:
		req = &proto.SetSinkVolume{SinkIndex: id.Index, ChannelVolumes: cv}
	case audio.AppIn:
		req = &proto.SetSourceOutputVolume{SourceOutputIndex: id.Index, ChannelVolumes: cv}
	case audio.AppOut:
		req = &proto.SetSinkInputVolume{SinkInputIndex: id.Index, ChannelVolumes: cv}
	default:
		return fmt.Errorf("set volume of %s: %w", id, audio.ErrNotFound)
	}
	audioLog.Debug("Setting volume", "id", id, "volume", volume, "channels", channels)
	if err := s.request(ctx, req, nil); err != nil {
		return fmt.Errorf("set volume of %s: %w", id, err)
	}
	return nil
}

func (s *Server) SetMute(ctx context.Context, id audio.ID, muted bool) error {
	var req proto.RequestArgs
	switch id.Kind {
	case audio.HardwareIn:
		req = &proto.SetSourceMute{SourceIndex: id.Index, Mute: muted}
	case audio.HardwareOut:
		req = &proto.SetSinkMute{SinkIndex: id.Index, Mute: muted}
	case audio.AppIn:
		req = &proto.SetSourceOutputMute{SourceOutputIndex: id.Index, Mute: muted}
	case audio.AppOut:
		req = &proto.SetSinkInputMute{SinkInputIndex: id.Index, Mute: muted}
	default:
		return fmt.Errorf("set mute of %s: %w", id, audio.ErrNotFound)
	}
	audioLog.Debug("Setting mute", "id", id, "muted", muted)
	if err := s.request(ctx, req, nil); err != nil {
		return fmt.Errorf("set mute of %s: %w", id, err)
	}
	return nil
}

func (s *Server) channels(ctx context.Context, id audio.ID) (int, error) {
	var n int
	switch id.Kind {
	case audio.HardwareIn:
		var rpl proto.GetSourceInfoReply
		if err := s.request(ctx, &proto.GetSourceInfo{SourceIndex: id.Index}, &rpl); err != nil {
			return 0, fmt.Errorf("get %s: %w", id, err)
		}
		n = len(rpl.ChannelVolumes)
	case audio.HardwareOut:
		var rpl proto.GetSinkInfoReply
		if err := s.request(ctx, &proto.GetSinkInfo{SinkIndex: id.Index}, &rpl); err != nil {
			return 0, fmt.Errorf("get %s: %w", id, err)
		}
		n = len(rpl.ChannelVolumes)
	case audio.AppIn:
		var rpl proto.GetSourceOutputInfoReply
		if err := s.request(ctx, &proto.GetSourceOutputInfo{SourceOutpuIndex: id.Index}, &rpl); err != nil {
			return 0, fmt.Errorf("get %s: %w", id, err)
		}
		n = len(rpl.ChannelVolumes)
	case audio.AppOut:
		var rpl proto.GetSinkInputInfoReply
		if err := s.request(ctx, &proto.GetSinkInputInfo{SinkInputIndex: id.Index}, &rpl); err != nil {
			return 0, fmt.Errorf("get %s: %w", id, err)
		}
		n = len(rpl.ChannelVolumes)
	default:
		return 0, fmt.Errorf("get %s: %w", id, audio.ErrNotFound)
	}
	if n == 0 {
		n = 1
	}
	return n, nil
}

// WatchPeaks records the monitor through a peak-detecting stream at rate samples per second. The stream is
// named audio.PeakStreamName so the model ignores it.
func (s *Server) WatchPeaks(ctx context.Context, monitor audio.MonitorRef, rate int, fn func(float64)) error {
	samples := make(chan float64, 1)
	w := pulse.Float32Writer(func(buf []float32) (int, error) {
		if p, ok := peak(buf); ok {
			offer(samples, p)
		}
		return len(buf), nil
	})
	stream, err := s.client.NewRecord(w,
		pulse.RecordMono,
		pulse.RecordSampleRate(rate),
		pulse.RecordMediaName(audio.PeakStreamName),
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			r.SourceIndex = undefined
			r.SourceName = monitor.Source
			r.PeakDetect = true
			r.AdjustLatency = true
			r.DirectOnInputIndex = monitor.Stream
		}),
	)
	if err != nil {
		if errors.Is(err, proto.ErrNoSuchEntity) {
			return fmt.Errorf("record %s: %w", describe(monitor), audio.ErrNotFound)
		}
		return fmt.Errorf("record %s: %w", describe(monitor), err)
	}
	defer stream.Close()
	stream.Start()
	audioLog.Debug("Peak stream started", "monitor", describe(monitor), "rate", rate)

	check := time.NewTicker(streamCheck)
	defer check.Stop()
	for {
		select {
		case <-ctx.Done():
			audioLog.Debug("Peak stream stopped", "monitor", describe(monitor))
			return nil
		case p := <-samples:
			fn(p)
		case <-check.C:
			if stream.Running() {
				continue
			}
			if err := stream.Error(); err != nil {
				return fmt.Errorf("record %s: %w", describe(monitor), err)
			}
			// The server kills a record stream when the source or stream it follows goes away.
			return fmt.Errorf("record %s: stream killed: %w", describe(monitor), audio.ErrNotFound)
		}
	}
}

func describe(m audio.MonitorRef) string {
	if m.Stream == audio.NoStream {
		return m.Source
	}
	return fmt.Sprintf("%s/%d", m.Source, m.Stream)
}

// offer replaces any unread sample with p.
func offer(ch chan float64, p float64) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func peak(buf []float32) (float64, bool) {
	if len(buf) == 0 {
		return 0, false
	}
	p := buf[0]
	for _, v := range buf[1:] {
		p = max(p, v)
	}
	return float64(p), true
}

func fromSource(info *proto.GetSourceInfoReply) audio.Object {
	return audio.Object{
		ID:      audio.ID{Kind: audio.HardwareIn, Index: info.SourceIndex},
		Name:    info.SourceName,
		Muted:   info.Mute,
		Volume:  average(info.ChannelVolumes) / volumeNorm,
		Monitor: audio.MonitorRef{Source: info.SourceName, Stream: audio.NoStream},
	}
}

func fromSink(info *proto.GetSinkInfoReply) audio.Object {
	return audio.Object{
		ID:      audio.ID{Kind: audio.HardwareOut, Index: info.SinkIndex},
		Name:    info.SinkName,
		Muted:   info.Mute,
		Volume:  average(info.ChannelVolumes) / volumeNorm,
		Monitor: audio.MonitorRef{Source: info.MonitorSourceName, Stream: audio.NoStream},
	}
}

// fromSourceOutput meters a recording stream by the source it records.
func (s *Server) fromSourceOutput(ctx context.Context, info *proto.GetSourceOutputInfoReply) (audio.Object, error) {
	var src proto.GetSourceInfoReply
	if err := s.request(ctx, &proto.GetSourceInfo{SourceIndex: info.SourceIndex}, &src); err != nil {
		return audio.Object{}, fmt.Errorf("source of source output %d: %w", info.SourceOutpuIndex, err)
	}
	return audio.Object{
		ID:      audio.ID{Kind: audio.AppIn, Index: info.SourceOutpuIndex},
		Name:    info.MediaName,
		AppName: prop(info.Properties, "application.name"),
		Muted:   info.Muted,
		Volume:  average(info.ChannelVolumes) / volumeNorm,
		Monitor: audio.MonitorRef{Source: src.SourceName, Stream: audio.NoStream},
	}, nil
}

// fromSinkInput meters a playback stream on its sink's monitor, narrowed to the stream.
func (s *Server) fromSinkInput(ctx context.Context, info *proto.GetSinkInputInfoReply) (audio.Object, error) {
	var sink proto.GetSinkInfoReply
	if err := s.request(ctx, &proto.GetSinkInfo{SinkIndex: info.SinkIndex}, &sink); err != nil {
		return audio.Object{}, fmt.Errorf("sink of sink input %d: %w", info.SinkInputIndex, err)
	}
	return audio.Object{
		ID:      audio.ID{Kind: audio.AppOut, Index: info.SinkInputIndex},
		Name:    info.MediaName,
		AppName: prop(info.Properties, "application.name"),
		Muted:   info.Muted,
		Volume:  average(info.ChannelVolumes) / volumeNorm,
		Monitor: audio.MonitorRef{Source: sink.MonitorSourceName, Stream: info.SinkInputIndex},
	}, nil
}

func prop(props proto.PropList, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	return v.String()
}

func average[S ~[]E, E ~uint32](s S) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}
	return sum / float64(len(s))
}

func fill[S ~[]E, E ~uint32](s S, v float64) {
	if v < 0 {
		v = 0
	}
	for i := range s {
		s[i] = E(v + 0.5)
	}
}
