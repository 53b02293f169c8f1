package relay

import (
	"errors"
	"fmt"
)

// Output receives the bank mask. Bit i set means channel i is energized.
type Output interface {
	Write(mask uint16) error
}

// Bank holds the state of every channel plus the aggregate mask.
// It is owned by a single goroutine; it is not safe for concurrent use.
type Bank struct {
	out      Output
	channels [NumChannels]Channel
	mask     uint16
	inSync   bool  // last write of mask reached the output
	fault    error // last write failure, nil once a write succeeds
	counts   Counts
}

// NewBank creates a bank with every channel off. Nothing is written to out
// until Reset or the first transition.
func NewBank(out Output) *Bank {
	return &Bank{out: out}
}

// Reset turns every channel off and writes the empty mask.
func (b *Bank) Reset() error {
	b.channels = [NumChannels]Channel{}
	b.mask = 0
	return b.push()
}

// SetChannel switches channel index on or off and writes the new mask.
// It is the only place the mask changes.
func (b *Bank) SetChannel(index int, on bool) error {
	if index < 0 || index >= NumChannels {
		return fmt.Errorf("%w: %d", ErrChannelRange, index)
	}
	b.channels[index].On = on
	bit := uint16(1) << uint(index)
	if on {
		b.mask |= bit
	} else {
		b.mask &^= bit
	}
	return b.push()
}

// push writes the mask for a channel transition. A failure that survives
// the retry counts once in WriteFailures.
func (b *Bank) push() error {
	if err := b.write(); err != nil {
		b.counts.WriteFailures++
		return err
	}
	return nil
}

// write sends the current mask, retrying once on failure. A failed retry
// leaves the logical state alone and marks the output out of sync so the
// next Tick pushes again.
func (b *Bank) write() error {
	err := b.out.Write(b.mask)
	if err != nil {
		err = b.out.Write(b.mask)
	}
	if err != nil {
		b.inSync = false
		b.fault = fmt.Errorf("%w: mask 0x%04X: %w", ErrOutputWrite, b.mask, err)
		return b.fault
	}
	b.inSync = true
	b.fault = nil
	return nil
}

// Apply arms every channel with a non-zero on-time in cmd, starting at now.
// A channel that is already on gets a fresh deadline (EventRearm) without
// passing through off. Channels with a zero on-time are not touched.
// Write failures do not stop the remaining channels from being armed.
func (b *Bank) Apply(cmd Command, now Millis) ([]Transition, error) {
	var events []Transition
	var errs []error
	for i, d := range cmd.OnTimes {
		if d == 0 {
			continue
		}
		ch := &b.channels[i]
		typ := EventOn
		if ch.On {
			typ = EventRearm
			b.counts.Rearm++
		} else {
			b.counts.On++
		}
		ch.Start = now
		ch.Duration = d
		if err := b.SetChannel(i, true); err != nil {
			errs = append(errs, err)
		}
		events = append(events, Transition{
			Channel:  i,
			Type:     typ,
			At:       now,
			Duration: d,
			Mask:     b.mask,
		})
	}
	return events, errors.Join(errs...)
}

// HandlePayload decodes a raw command and applies it. A payload of the wrong
// size is discarded without changing any state.
func (b *Bank) HandlePayload(payload []byte, now Millis) ([]Transition, error) {
	cmd, err := DecodeCommand(payload)
	if err != nil {
		b.counts.Rejected++
		return nil, err
	}
	return b.Apply(cmd, now)
}

// Tick turns off every channel whose deadline has been reached at now.
// A channel armed at t0 for d goes off on the first Tick with
// Elapsed(now, t0) >= d and never before, so shutoff lags the deadline by
// at most one polling interval. If the output is out of sync and nothing
// expired, the mask is pushed again; a failed resync is not counted as a
// new write failure.
func (b *Bank) Tick(now Millis) ([]Transition, error) {
	var events []Transition
	var errs []error
	for i := range b.channels {
		ch := &b.channels[i]
		if !ch.On || Elapsed(now, ch.Start) < ch.Duration {
			continue
		}
		if err := b.SetChannel(i, false); err != nil {
			errs = append(errs, err)
		}
		b.counts.Off++
		events = append(events, Transition{
			Channel: i,
			Type:    EventOff,
			At:      now,
			Mask:    b.mask,
		})
	}
	if len(events) == 0 && !b.inSync {
		if err := b.write(); err != nil {
			errs = append(errs, err)
		}
	}
	return events, errors.Join(errs...)
}

// Mask returns the current aggregate mask.
func (b *Bank) Mask() uint16 {
	return b.mask
}

// Channel returns the state of channel index.
func (b *Bank) Channel(index int) (Channel, error) {
	if index < 0 || index >= NumChannels {
		return Channel{}, fmt.Errorf("%w: %d", ErrChannelRange, index)
	}
	return b.channels[index], nil
}

// Channels returns a copy of every channel's state.
func (b *Bank) Channels() [NumChannels]Channel {
	return b.channels
}

// Fault returns the last output failure, or nil if the last write succeeded.
func (b *Bank) Fault() error {
	return b.fault
}

// InSync reports whether the output holds the current mask.
func (b *Bank) InSync() bool {
	return b.inSync
}

// Counts returns a copy of the activity counters.
func (b *Bank) Counts() Counts {
	return b.counts
}
