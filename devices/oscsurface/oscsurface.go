// Package oscsurface is a control surface made of OSC messages, for use with software controllers such as
// TouchOSC or Open Stage Control in place of a hardware panel.
//
// The surface sends:
//
//	/strip/{n}/fader f          position in [0,1]
//	/strip/{n}/solo i           lamp, 0 or 1 (also mute, select)
//	/strip/{n}/text/{line} s i T|F  text, alignment, highlight
//	/strip/{n}/meter i f        meter kind, value in [0,1]
//	/heartbeat
//
// and accepts:
//
//	/strip/{n}/fader f
//	/strip/{n}/touch T|F        (also solo, mute, select)
//	/button/{name} T|F
//	/view s                     hardware-in, hardware-out, app-in, app-out or all
package oscsurface

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/Grissess/pulse-mcu/devices"
	"github.com/Grissess/pulse-mcu/logging"
)

var oscInLog, oscOutLog *slog.Logger

func init() {
	oscInLog = logging.Get(logging.OSC_IN)
	oscOutLog = logging.Get(logging.OSC_OUT)
}

// Client sends packets to the remote controller; *osc.Client satisfies it.
type Client interface {
	Send(packet osc.Packet) error
}

// Surface implements devices.Panel over OSC.
type Surface struct {
	client     Client
	strips     int
	listenAddr string
	dispatcher *Dispatcher

	mu    sync.Mutex
	input func(devices.Input)
}

// New returns a surface of the given number of strips that sends through client and, once Listen is called,
// receives on listenAddr. An empty listenAddr leaves input to Dispatch.
func New(client Client, strips int, listenAddr string) *Surface {
	s := &Surface{
		client:     client,
		strips:     strips,
		listenAddr: listenAddr,
		dispatcher: NewDispatcher(),
	}
	s.bindInputs()
	return s
}

// Dial returns a surface sending UDP to the controller at remoteHost:remotePort.
func Dial(remoteHost string, remotePort int, listenAddr string, strips int) *Surface {
	return New(osc.NewClient(remoteHost, remotePort), strips, listenAddr)
}

func (s *Surface) Strips() int {
	return s.strips
}

func (s *Surface) send(addr string, args ...any) error {
	oscOutLog.Debug("Sending OSC", "address", addr, "args", args)
	if err := s.client.Send(osc.NewMessage(addr, args...)); err != nil {
		return fmt.Errorf("send %s: %w", addr, err)
	}
	return nil
}

func (s *Surface) checkSlot(slot int) error {
	if slot < 0 || slot >= s.strips {
		return fmt.Errorf("strip %d out of range %d", slot, s.strips)
	}
	return nil
}

func clampUnit(unit float64) float32 {
	if !(unit > 0) {
		return 0
	}
	if unit > 1 {
		return 1
	}
	return float32(unit)
}

func lamp(on bool) int32 {
	if on {
		return 1
	}
	return 0
}

func (s *Surface) SetFaderPosition(slot int, unit float64) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	return s.send(fmt.Sprintf("/strip/%d/fader", slot), clampUnit(unit))
}

func (s *Surface) SetSoloLamp(slot int, on bool) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	return s.send(fmt.Sprintf("/strip/%d/solo", slot), lamp(on))
}

func (s *Surface) SetMuteLamp(slot int, on bool) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	return s.send(fmt.Sprintf("/strip/%d/mute", slot), lamp(on))
}

func (s *Surface) SetSelectLamp(slot int, on bool) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	return s.send(fmt.Sprintf("/strip/%d/select", slot), lamp(on))
}

// SetText puts the whole text on the first of the lines and clears the rest; a software controller can
// wrap for itself.
func (s *Surface) SetText(slot int, lines []int, text string, align devices.Align, highlight bool) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	for _, line := range lines {
		if err := s.send(fmt.Sprintf("/strip/%d/text/%d", slot, line), text, int32(align), highlight); err != nil {
			return err
		}
		text = ""
	}
	return nil
}

func (s *Surface) SetMeter(slot int, kind devices.MeterKind, unit float64) error {
	if err := s.checkSlot(slot); err != nil {
		return err
	}
	return s.send(fmt.Sprintf("/strip/%d/meter", slot), int32(kind), clampUnit(unit))
}

func (s *Surface) Heartbeat() error {
	return s.send("/heartbeat")
}

// Dispatch handles one inbound packet. Implements osc.Dispatcher.
func (s *Surface) Dispatch(packet osc.Packet) {
	s.dispatcher.Dispatch(packet)
}

// Listen calls fn with every input event. If the surface has a listen address, packets are received there
// until stop is called.
func (s *Surface) Listen(fn func(devices.Input)) (stop func(), err error) {
	s.mu.Lock()
	s.input = fn
	s.mu.Unlock()
	detach := func() {
		s.mu.Lock()
		s.input = nil
		s.mu.Unlock()
	}
	if s.listenAddr == "" {
		return detach, nil
	}

	conn, err := net.ListenPacket("udp", s.listenAddr)
	if err != nil {
		detach()
		return nil, fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	server := &osc.Server{Addr: s.listenAddr, Dispatcher: s}
	oscInLog.Info("Listening for OSC surface input", "addr", conn.LocalAddr().String())
	go func() {
		if err := server.Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
			oscInLog.Error("OSC surface server stopped", "err", err)
		}
	}()
	return func() {
		conn.Close()
		detach()
	}, nil
}

func (s *Surface) emit(in devices.Input) {
	s.mu.Lock()
	fn := s.input
	s.mu.Unlock()
	if fn == nil {
		return
	}
	fn(in)
}

func (s *Surface) slot(captures []string) (int, error) {
	if len(captures) == 0 {
		return 0, errors.New("missing strip number")
	}
	slot, err := strconv.Atoi(captures[0])
	if err != nil {
		return 0, fmt.Errorf("bad strip number %q", captures[0])
	}
	if err := s.checkSlot(slot); err != nil {
		return 0, err
	}
	return slot, nil
}

func (s *Surface) bindInputs() {
	bind(s.dispatcher, "/strip/@/fader", func(captures []string, v float64) error {
		slot, err := s.slot(captures)
		if err != nil {
			return err
		}
		s.emit(devices.Input{Kind: devices.FaderMove, Slot: slot, Value: v})
		return nil
	})
	for addr, kind := range map[string]devices.InputKind{
		"/strip/@/touch":  devices.FaderTouch,
		"/strip/@/solo":   devices.SoloPress,
		"/strip/@/mute":   devices.MutePress,
		"/strip/@/select": devices.SelectPress,
	} {
		kind := kind
		bind(s.dispatcher, addr, func(captures []string, pressed bool) error {
			slot, err := s.slot(captures)
			if err != nil {
				return err
			}
			s.emit(devices.Input{Kind: kind, Slot: slot, Pressed: pressed})
			return nil
		})
	}
	bind(s.dispatcher, "/button/@", func(captures []string, pressed bool) error {
		s.emit(devices.Input{Kind: devices.ButtonPress, Slot: -1, Pressed: pressed, Button: captures[0]})
		return nil
	})
	bind(s.dispatcher, "/view", func(captures []string, view string) error {
		s.emit(devices.Input{Kind: devices.ButtonPress, Slot: -1, Pressed: true, Button: "view", View: view})
		return nil
	})
}

// bind registers effect for addr, converting the message's last argument to T.
func bind[T devices.BaseTypes](d *Dispatcher, addr string, effect func(captures []string, v T) error) {
	d.AddMsgHandler(addr, func(msg *osc.Message, captures []string) {
		if len(msg.Arguments) == 0 {
			oscInLog.Debug("OSC message without argument", "address", msg.Address)
			return
		}
		v, err := convert[T](msg.Arguments[len(msg.Arguments)-1])
		if err == nil {
			err = effect(captures, v)
		}
		if err != nil {
			oscInLog.Debug("Dropped OSC message", "address", msg.Address, "args", msg.Arguments, "err", err)
		}
	})
}

// convert interprets an OSC argument as T. Numbers convert to each other, to bool (positive is true) and to
// string; strings parse as numbers and "true"/"false".
func convert[T devices.BaseTypes](arg any) (T, error) {
	var out T
	var err error
	switch p := any(&out).(type) {
	case *float64:
		*p, err = toFloat(arg)
	case *int64:
		var f float64
		f, err = toFloat(arg)
		*p = int64(f)
	case *bool:
		switch v := arg.(type) {
		case bool:
			*p = v
		case string:
			*p, err = strconv.ParseBool(v)
		default:
			var f float64
			f, err = toFloat(arg)
			*p = f > 0
		}
	case *string:
		switch v := arg.(type) {
		case string:
			*p = v
		default:
			*p = fmt.Sprint(v)
		}
	}
	return out, err
}

func toFloat(arg any) (float64, error) {
	switch v := arg.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot interpret %T as a number", arg)
	}
}
