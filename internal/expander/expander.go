// Package expander drives a PCF8575 16-bit I2C port expander.
// The real implementation uses the Linux i2c-dev interface.
// The fake implementation allows testing without hardware.
package expander

// Address is the 7-bit I2C address of the expander.
const Address = 0x20

// Writer latches a 16-bit mask onto the expander outputs.
type Writer interface {
	// Write sends mask as a single two-byte transaction.
	Write(mask uint16) error

	// Close releases the bus.
	Close() error
}

// Encode returns the bytes of one write transaction: low byte first, then
// high byte. The PCF8575 has no register address; it latches on the pair.
func Encode(mask uint16) [2]byte {
	return [2]byte{byte(mask & 0xFF), byte(mask >> 8)}
}
