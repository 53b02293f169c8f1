package relay

import (
	"encoding/binary"
	"fmt"
)

// Command payload layout: NumChannels consecutive little-endian uint32
// on-times in milliseconds, channel 0 first. No header, no checksum.
const (
	FieldSize   = 4
	CommandSize = NumChannels * FieldSize
)

// Command is a decoded inbound command.
// OnTimes[i] == 0 leaves channel i as it is; any other value (re)arms it.
type Command struct {
	OnTimes [NumChannels]Millis
}

// DecodeCommand decodes a raw payload field by field.
func DecodeCommand(payload []byte) (Command, error) {
	var cmd Command
	if len(payload) != CommandSize {
		return cmd, fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadSize, len(payload), CommandSize)
	}
	for i := range cmd.OnTimes {
		off := i * FieldSize
		cmd.OnTimes[i] = Millis(binary.LittleEndian.Uint32(payload[off : off+FieldSize]))
	}
	return cmd, nil
}

// EncodeCommand is the inverse of DecodeCommand.
func EncodeCommand(cmd Command) []byte {
	data := make([]byte, CommandSize)
	for i, v := range cmd.OnTimes {
		binary.LittleEndian.PutUint32(data[i*FieldSize:], uint32(v))
	}
	return data
}

// Armed returns the indexes of channels the command would (re)arm.
func (c Command) Armed() []int {
	var idx []int
	for i, v := range c.OnTimes {
		if v > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}
