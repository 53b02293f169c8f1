package expander

import "errors"

// ErrFakeBus is returned by FakeWriter for scripted failures.
var ErrFakeBus = errors.New("fake i2c: nak")

// FakeWriter is a test double that records every transaction.
type FakeWriter struct {
	// Masks contains every mask successfully written, in order.
	Masks []uint16

	// Transactions contains the encoded bytes of every successful write.
	Transactions [][2]byte

	// FailNext makes the next N writes fail with ErrFakeBus.
	FailNext int

	// WriteError, if set, is returned by every Write.
	WriteError error

	// Attempts counts every Write call, including failures.
	Attempts int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates a FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Write records the mask unless a failure is scripted.
func (f *FakeWriter) Write(mask uint16) error {
	f.Attempts++
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.FailNext > 0 {
		f.FailNext--
		return ErrFakeBus
	}
	f.Masks = append(f.Masks, mask)
	f.Transactions = append(f.Transactions, Encode(mask))
	return nil
}

// Last returns the most recently written mask, or 0 if nothing was written.
func (f *FakeWriter) Last() uint16 {
	if len(f.Masks) == 0 {
		return 0
	}
	return f.Masks[len(f.Masks)-1]
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and scripted failures.
func (f *FakeWriter) Reset() {
	f.Masks = nil
	f.Transactions = nil
	f.FailNext = 0
	f.WriteError = nil
	f.Attempts = 0
	f.Closed = false
}
