// Package relay contains the timing engine for a 16-channel relay bank.
// This package has NO external dependencies (no I2C, MQTT, OS, or time.Sleep).
// Time is always injectable via Millis parameters.
package relay

import (
	"errors"
	"time"
)

// NumChannels is the number of relay outputs on the bank.
const NumChannels = 16

// Millis is a free-running millisecond counter. It is 32 bits wide to match
// the sender's native unsigned long, so it wraps every ClockPeriod.
type Millis uint32

// ClockPeriod is how long the Millis counter runs before wrapping to zero.
const ClockPeriod = time.Duration(1<<32) * time.Millisecond

// Elapsed returns now - since, correct across a single counter wrap.
func Elapsed(now, since Millis) Millis {
	return now - since
}

// Duration converts m to a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

// Errors returned by the relay engine.
var (
	ErrChannelRange = errors.New("relay: channel index out of range")
	ErrPayloadSize  = errors.New("relay: invalid command payload size")
	ErrOutputWrite  = errors.New("relay: output write failed")
)

// Channel is the timing state of a single relay.
type Channel struct {
	On       bool
	Start    Millis // counter value when the channel was (re)armed
	Duration Millis // how long the channel stays on after Start
}

// Deadline returns the counter value at which the channel must be off.
// The value may have wrapped past zero.
func (c Channel) Deadline() Millis {
	return c.Start + c.Duration
}

// Remaining returns how long the channel stays on after now.
// Returns 0 for an off channel or one whose deadline has passed.
func (c Channel) Remaining(now Millis) Millis {
	if !c.On {
		return 0
	}
	e := Elapsed(now, c.Start)
	if e >= c.Duration {
		return 0
	}
	return c.Duration - e
}

// EventType identifies a channel transition.
type EventType string

const (
	EventOn    EventType = "RELAY_ON"
	EventRearm EventType = "RELAY_REARM"
	EventOff   EventType = "RELAY_OFF"
)

// Transition is a single channel state change, reported after the
// new mask has been handed to the output.
type Transition struct {
	Channel  int
	Type     EventType
	At       Millis
	Duration Millis // armed duration; zero for EventOff
	Mask     uint16 // bank mask after the transition
}

// Counts tracks engine activity since startup.
type Counts struct {
	On            int
	Rearm         int
	Off           int
	WriteFailures int // transitions whose write failed after the retry
	Rejected      int // payloads discarded by HandlePayload
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
