//go:build linux

package expander

import (
	"errors"
	"fmt"

	"github.com/reef-pi/rpi/i2c"
)

// RealWriter writes to an expander on /dev/i2c-1.
type RealWriter struct {
	bus  i2c.Bus
	addr byte
}

// NewRealWriter opens the I2C bus for the expander at Address.
func NewRealWriter() (*RealWriter, error) {
	bus, err := i2c.New()
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &RealWriter{bus: bus, addr: Address}, nil
}

// Write sends the two-byte latch value.
func (w *RealWriter) Write(mask uint16) error {
	b := Encode(mask)
	if err := w.bus.WriteBytes(w.addr, b[:]); err != nil {
		return fmt.Errorf("pcf8575 addr=0x%02X: write 0x%04X: %w", w.addr, mask, err)
	}
	return nil
}

// Close switches every output off and releases the bus, so relays do not
// stay latched while the daemon is not running.
func (w *RealWriter) Close() error {
	var errs []error
	if err := w.Write(0); err != nil {
		errs = append(errs, fmt.Errorf("release outputs: %w", err))
	}
	if err := w.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	return errors.Join(errs...)
}
