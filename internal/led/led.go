// Package led drives the fault indicator LED.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package led

// Indicator is an on/off status output.
type Indicator interface {
	// Set lights (true) or clears (false) the indicator.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultPin is the BCM pin the fault LED is wired to on the reference board.
// A negative pin disables the indicator.
const DefaultPin = 21

// Nop is an Indicator that does nothing. Used when no pin is configured.
type Nop struct{}

// Set does nothing.
func (Nop) Set(bool) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// Open returns the real indicator on pin, or Nop if pin is negative.
func Open(pin int) (Indicator, error) {
	if pin < 0 {
		return Nop{}, nil
	}
	r, err := NewRealIndicator(pin)
	if err != nil {
		return nil, err
	}
	return r, nil
}
