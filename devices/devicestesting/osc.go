package devicestesting

import (
	"errors"
	"sync"

	"github.com/hypebeast/go-osc/osc"
)

// MockOscClient records every message sent through it.
type MockOscClient struct {
	mu           sync.Mutex
	sentMessages []*osc.Message
	shouldError  bool
}

func (m *MockOscClient) Send(packet osc.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldError {
		return errors.New("mock send error")
	}
	switch p := packet.(type) {
	case *osc.Message:
		m.sentMessages = append(m.sentMessages, p)
	case *osc.Bundle:
		m.sentMessages = append(m.sentMessages, p.Messages...)
	}
	return nil
}

func (m *MockOscClient) GetSentMessages() []*osc.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*osc.Message(nil), m.sentMessages...)
}

// GetSentAddresses returns the address of every sent message.
func (m *MockOscClient) GetSentAddresses() []string {
	out := []string{}
	for _, msg := range m.GetSentMessages() {
		out = append(out, msg.Address)
	}
	return out
}

func (m *MockOscClient) SetError(shouldError bool) {
	m.mu.Lock()
	m.shouldError = shouldError
	m.mu.Unlock()
}
