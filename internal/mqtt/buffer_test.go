package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	require.Len(t, got, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, byte(i), got[i].payload[0], "item %d", i)
	}

	assert.Nil(t, rb.drainAll(), "second drain is empty")
}

func TestRingBufferFillToCapacity(t *testing.T) {
	size := 10
	rb := newRingBuffer(size)
	for i := 0; i < size; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	require.Len(t, got, size)
	for i := 0; i < size; i++ {
		assert.Equal(t, byte(i), got[i].payload[0], "item %d", i)
	}
}

func TestRingBufferOverflow(t *testing.T) {
	size := 5
	rb := newRingBuffer(size)

	// Push 0..7; the most recent 5 (3..7) survive.
	for i := 0; i < size+3; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	require.Len(t, got, size)
	for i := 0; i < size; i++ {
		assert.Equal(t, byte(i+3), got[i].payload[0], "item %d", i)
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	for i := 0; i < 3; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	require.Len(t, rb.drainAll(), 3, "cycle 1")

	for i := 10; i < 14; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got := rb.drainAll()
	require.Len(t, got, 4, "cycle 2")
	for i, msg := range got {
		assert.Equal(t, byte(10+i), msg.payload[0], "cycle 2 item %d", i)
	}
}

func TestRingBufferLen(t *testing.T) {
	rb := newRingBuffer(10)
	assert.Equal(t, 0, rb.len())

	rb.push(bufferedMsg{topic: "t"})
	rb.push(bufferedMsg{topic: "t"})
	assert.Equal(t, 2, rb.len())

	rb.drainAll()
	assert.Equal(t, 0, rb.len(), "empty after drain")
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    "relays/test",
		payload:  []byte(`{"relay":{}}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	require.Len(t, got, 1)
	assert.Equal(t, "relays/test", got[0].topic)
	assert.Equal(t, `{"relay":{}}`, string(got[0].payload))
	assert.Equal(t, byte(1), got[0].qos)
	assert.True(t, got[0].retained)
}

func TestRingBufferCountsDropped(t *testing.T) {
	rb := newRingBuffer(2)
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	assert.Equal(t, 3, rb.dropped)

	rb.drainAll()
	assert.Zero(t, rb.dropped, "drain resets drop tracking")
	assert.False(t, rb.overflow)
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	rb.push(bufferedMsg{topic: "a"})
	rb.push(bufferedMsg{topic: "b"})

	got := rb.drainAll()
	require.Len(t, got, 1, "only the newest message survives")
	assert.Equal(t, "b", got[0].topic)
}
