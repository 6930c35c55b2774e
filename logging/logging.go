package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/hypebeast/go-osc/osc"
)

type LogCategory string

const (
	META     LogCategory = "meta" // For logs about logging
	MIDI_IN  LogCategory = "midi_in"
	MIDI_OUT LogCategory = "midi_out"
	OSC_IN   LogCategory = "osc_in"
	OSC_OUT  LogCategory = "osc_out"
	AUDIO    LogCategory = "audio" // Audio server traffic
	APP      LogCategory = "app"   // For application-specific logs (i.e. business logic)
)

// Categories lists every known category in a stable order.
var Categories = []LogCategory{META, MIDI_IN, MIDI_OUT, OSC_IN, OSC_OUT, AUDIO, APP}

func ParseCategory(s string) (LogCategory, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ParseLevel accepts the slog level names (debug, info, warn, error), case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// Internal state for loggers per category
var (
	mu               = new(sync.RWMutex)
	loggers          = map[LogCategory]*slog.Logger{}
	categoryLvls     = map[LogCategory]*slog.LevelVar{}
	defaultLogLevels = map[LogCategory]slog.Level{
		META:     slog.LevelInfo,
		MIDI_IN:  slog.LevelWarn,
		MIDI_OUT: slog.LevelWarn,
		OSC_IN:   slog.LevelWarn,
		OSC_OUT:  slog.LevelWarn,
		AUDIO:    slog.LevelWarn,
		APP:      slog.LevelInfo,
	}
)

// levelVar returns the LevelVar for category, creating it at the default level. mu must be held for writing.
func levelVar(category LogCategory) *slog.LevelVar {
	lvlVar, ok := categoryLvls[category]
	if !ok {
		lvlVar = new(slog.LevelVar)
		lvlVar.Set(defaultLogLevels[category])
		categoryLvls[category] = lvlVar
	}
	return lvlVar
}

// Get returns a slog.Logger that always has the "category" attribute set.
// Each category gets its own logger instance.
func Get(category LogCategory) *slog.Logger {
	mu.RLock()
	l, ok := loggers[category]
	mu.RUnlock()
	if ok {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	// Double-check after locking
	if l, ok := loggers[category]; ok {
		return l
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelVar(category),
	})
	catLogger := slog.New(handler).With("category", category)
	loggers[category] = catLogger
	return catLogger
}

func SetCategoryLevel(category LogCategory, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	levelVar(category).Set(level)
}

func CategoryLevel(category LogCategory) slog.Level {
	mu.Lock()
	defer mu.Unlock()
	return levelVar(category).Level()
}

// Dispatcher is a custom osc.Dispatcher, implementing the osc.Dispatcher interface
type Dispatcher struct{}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch dispatches OSC packets. Implements the Dispatcher interface.
func (s *Dispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	default:
		return

	case *osc.Message:
		HandleOSCSetCategoryLevel(p)

	case *osc.Bundle:
		for _, m := range p.Messages {
			HandleOSCSetCategoryLevel(m)
		}
	}
}

// ListenOSC serves the runtime log-level routes on addr until the returned stop function is called.
func ListenOSC(addr string) (stop func(), err error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for log control on %s: %w", addr, err)
	}
	server := &osc.Server{
		Addr:       addr,
		Dispatcher: NewDispatcher(),
	}
	Get(META).Info("Serving log level control over OSC", "addr", conn.LocalAddr().String())
	go func() {
		if err := server.Serve(conn); err != nil && !isClosed(err) {
			Get(META).Error("OSC log control server stopped", "err", err)
		}
	}()
	return func() { conn.Close() }, nil
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func splitOscPath(path string) []string {
	return strings.Split(path, "/")[1:]
}

// OSC handler for runtime config
//
// Routes:
// /meta/logging/{category}/level as int where -4 is Debug, 0 is Info, 4 is Warn, 8 is Error
func HandleOSCSetCategoryLevel(msg *osc.Message) {
	pathSegs := splitOscPath(msg.Address)

	if len(pathSegs) != 4 || pathSegs[0] != "meta" || pathSegs[1] != "logging" || pathSegs[3] != "level" {
		return
	}
	cat, ok := ParseCategory(pathSegs[2])
	if !ok {
		Get(META).Info("Unrecognized log category in OSC message", "category", pathSegs[2])
		return
	}
	if len(msg.Arguments) == 0 {
		Get(META).Error("Missing level argument in OSC message", "address", msg.Address)
		return
	}
	level, ok := msg.Arguments[0].(int32)
	if !ok {
		Get(META).Error("Invalid level type in OSC message", "expected", "int32", "got", fmt.Sprintf("%T", msg.Arguments[0]))
		return
	}
	Get(META).Info("Setting category level via OSC",
		"category", cat,
		"level", level)
	SetCategoryLevel(cat, slog.Level(level))
}
