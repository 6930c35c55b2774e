package oscsurface

import (
	"strings"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

type namedHandler struct {
	name    string
	handler func(msg *osc.Message, captures []string)
}

// Dispatcher is a custom osc.Dispatcher whose handler addresses may contain wildcard segments.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []namedHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: []namedHandler{}}
}

// AddMsgHandler registers handler for addr. Each "@" segment of addr matches any one segment of a message
// address and is passed to the handler as a capture.
func (d *Dispatcher) AddMsgHandler(addr string, handler func(msg *osc.Message, captures []string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, namedHandler{addr, handler})
}

// matchAddr checks if messageAddr matches the path pattern.
// Each "@" in path acts as a wildcard for a segment, and captured segments are returned.
// If path ends with "*", any additional segments in messageAddr are ignored.
// "*" does not capture anything.
func matchAddr(path, messageAddr string) (bool, []string) {
	pathSegs := strings.Split(path, "/")
	addrSegs := strings.Split(messageAddr, "/")

	endsWithStar := len(pathSegs) > 0 && pathSegs[len(pathSegs)-1] == "*"
	matchLen := len(pathSegs)
	if endsWithStar {
		matchLen--
		if len(addrSegs) < matchLen {
			return false, nil
		}
	} else if len(pathSegs) != len(addrSegs) {
		return false, nil
	}

	var captures []string
	for i := 0; i < matchLen; i++ {
		p := pathSegs[i]
		if p == "@" {
			captures = append(captures, addrSegs[i])
		} else if p != addrSegs[i] {
			return false, nil
		}
	}
	return true, captures
}

func (d *Dispatcher) dispatchMessage(msg *osc.Message) {
	d.mu.RLock()
	handlers := d.handlers
	d.mu.RUnlock()

	matched := false
	for _, h := range handlers {
		if ok, captures := matchAddr(h.name, msg.Address); ok {
			matched = true
			h.handler(msg, captures)
		}
	}
	if !matched {
		oscInLog.Debug("Unhandled OSC message", "address", msg.Address, "args", msg.Arguments)
	}
}

// Dispatch dispatches OSC packets. Implements the osc.Dispatcher interface.
//
// Bundles are dispatched when their time tag comes due, on their own goroutine.
func (d *Dispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		d.dispatchMessage(p)

	case *osc.Bundle:
		timer := time.NewTimer(p.Timetag.ExpiresIn())
		go func() {
			<-timer.C
			for _, message := range p.Messages {
				d.dispatchMessage(message)
			}
			for _, b := range p.Bundles {
				d.Dispatch(b)
			}
		}()
	}
}
