package devicestesting

import (
	"errors"
	"sync"
	"testing"

	midi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/Grissess/pulse-mcu/devices"
)

// MockMIDIPort implements both drivers.In and drivers.Out interfaces
type MockMIDIPort struct {
	mu sync.Mutex

	name string

	// For tracking sent messages
	sentMessages []midi.Message

	// For simulating received messages
	listeners map[int]func(msg []byte, timestampms int32)
	nextID    int

	// For testing error conditions
	shouldError bool

	isOpen bool
}

func NewMockMIDIPort() *MockMIDIPort {
	return NewNamedMockMIDIPort("MockMIDIPort")
}

func NewNamedMockMIDIPort(name string) *MockMIDIPort {
	return &MockMIDIPort{
		name:         name,
		sentMessages: make([]midi.Message, 0),
		listeners:    map[int]func(msg []byte, timestampms int32){},
	}
}

func (m *MockMIDIPort) Open() error {
	m.mu.Lock()
	m.isOpen = true
	m.mu.Unlock()
	return nil
}

func (m *MockMIDIPort) Close() error {
	m.mu.Lock()
	m.isOpen = false
	m.mu.Unlock()
	return nil
}

func (m *MockMIDIPort) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isOpen
}

// Number implements drivers.Out and drivers.In
func (m *MockMIDIPort) Number() int {
	return 0
}

// String implements drivers.Out and drivers.In
func (m *MockMIDIPort) String() string {
	return m.name
}

func (m *MockMIDIPort) Underlying() interface{} {
	return m
}

// Send implements drivers.Out
func (m *MockMIDIPort) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldError {
		return errors.New("mock send error")
	}
	m.sentMessages = append(m.sentMessages, append(midi.Message(nil), data...))
	return nil
}

// SimulateReceive delivers a message to every listener, synchronously.
func (m *MockMIDIPort) SimulateReceive(msg midi.Message) {
	m.mu.Lock()
	listeners := make([]func(msg []byte, timestampms int32), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(msg.Bytes(), 0) // timestamp 0 for simplicity
	}
}

// Listen implements drivers.In
func (m *MockMIDIPort) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (stopFn func(), err error) {
	if !m.IsOpen() {
		return nil, errors.New("port not open")
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = onMsg
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}, nil
}

// Listening reports how many listeners are registered.
func (m *MockMIDIPort) Listening() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// GetSentMessages returns all messages that were sent
func (m *MockMIDIPort) GetSentMessages() []midi.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]midi.Message, len(m.sentMessages))
	copy(result, m.sentMessages)
	return result
}

// GetSentBytes returns the raw bytes of all messages that were sent
func (m *MockMIDIPort) GetSentBytes() [][]byte {
	out := [][]byte{}
	for _, msg := range m.GetSentMessages() {
		out = append(out, msg.Bytes())
	}
	return out
}

func (m *MockMIDIPort) ClearSent() {
	m.mu.Lock()
	m.sentMessages = make([]midi.Message, 0)
	m.mu.Unlock()
}

// SetError configures the mock to return errors
func (m *MockMIDIPort) SetError(shouldError bool) {
	m.mu.Lock()
	m.shouldError = shouldError
	m.mu.Unlock()
}

// NewTestMidiDevice creates an opened MidiDevice whose input and output are the same mock port.
func NewTestMidiDevice(t *testing.T) (*devices.MidiDevice, *MockMIDIPort) {
	t.Helper()
	mockPort := NewMockMIDIPort()
	device := devices.NewMidiDevice(mockPort, mockPort)
	if err := device.Open(); err != nil {
		t.Fatalf("open mock device: %v", err)
	}
	return device, mockPort
}
