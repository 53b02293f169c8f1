package mqtt

import "sync"

// FakeClient records published events for test assertions and lets tests
// inject command payloads.
type FakeClient struct {
	mu sync.Mutex

	// Events contains all relay transitions that were published.
	Events []Event

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Dropped counts payloads rejected by Deliver because the inbox was full.
	Dropped int

	commands chan []byte
}

// NewFakeClient creates a FakeClient whose inbox holds inboxSize payloads.
func NewFakeClient(inboxSize int) *FakeClient {
	return &FakeClient{commands: make(chan []byte, max(inboxSize, 1))}
}

// Deliver simulates a command arriving from the broker. Returns false if the
// inbox was full and the payload was dropped.
func (f *FakeClient) Deliver(payload []byte) bool {
	if offer(f.commands, payload) {
		return true
	}
	f.mu.Lock()
	f.Dropped++
	f.mu.Unlock()
	return false
}

// Commands returns the inbox.
func (f *FakeClient) Commands() <-chan []byte {
	return f.commands
}

// Publish records the relay event.
func (f *FakeClient) Publish(event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakeClient) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears recorded events.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
	f.Dropped = 0
}
