package beast

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// maxBuffer bounds the bytes held while waiting for the rest of a message
const maxBuffer = 4096

// Decoder splits a Beast byte stream into messages. Input may be cut at any
// byte boundary.
type Decoder struct {
	logger  *logrus.Logger
	buffer  []byte
	dropped uint64
}

// NewDecoder creates a new Beast decoder
func NewDecoder(logger *logrus.Logger) *Decoder {
	return &Decoder{
		logger: logger,
		buffer: make([]byte, 0, maxBuffer),
	}
}

// Dropped returns the number of malformed or unknown messages skipped
func (d *Decoder) Dropped() uint64 {
	return d.dropped
}

// Decode appends data to the stream and returns every complete message
func (d *Decoder) Decode(data []byte) []*Message {
	d.buffer = append(d.buffer, data...)

	var messages []*Message
	for {
		start := d.findSync()
		if start < 0 {
			d.buffer = d.buffer[:0]
			break
		}
		d.buffer = d.buffer[start:]
		if len(d.buffer) < 2 {
			break
		}

		msg, consumed, err := d.parse()
		if err != nil {
			d.dropped++
			d.logger.WithFields(logrus.Fields{
				"message_type": fmt.Sprintf("0x%02x", d.buffer[1]),
			}).WithError(err).Debug("Skipping Beast message")
			// Resync on the byte after this sync
			d.buffer = d.buffer[1:]
			continue
		}
		if msg == nil {
			break
		}
		messages = append(messages, msg)
		d.buffer = d.buffer[consumed:]
	}

	if len(d.buffer) > maxBuffer {
		d.logger.WithField("buffer_size", len(d.buffer)).Debug("Beast buffer overflow, clearing")
		d.buffer = d.buffer[:0]
	}
	return messages
}

// findSync returns the index of the first sync byte that starts a message,
// skipping escaped pairs
func (d *Decoder) findSync() int {
	for i := 0; i < len(d.buffer); i++ {
		if d.buffer[i] != SyncByte {
			continue
		}
		if i+1 < len(d.buffer) && d.buffer[i+1] == SyncByte {
			i++
			continue
		}
		return i
	}
	return -1
}

// parse decodes the message at the head of the buffer. A nil message with a
// nil error means more input is needed.
func (d *Decoder) parse() (*Message, int, error) {
	messageType := d.buffer[1]
	dataLen := DataLength(messageType)
	if dataLen == 0 {
		return nil, 0, fmt.Errorf("unknown message type")
	}

	want := headerLen + dataLen
	payload := make([]byte, 0, want)
	i := 2
	for len(payload) < want {
		if i >= len(d.buffer) {
			return nil, 0, nil
		}
		b := d.buffer[i]
		if b == SyncByte {
			if i+1 >= len(d.buffer) {
				return nil, 0, nil
			}
			if d.buffer[i+1] != SyncByte {
				return nil, 0, fmt.Errorf("message truncated after %d bytes", len(payload))
			}
			i++
		}
		payload = append(payload, b)
		i++
	}

	var ts uint64
	for _, b := range payload[:6] {
		ts = ts<<8 | uint64(b)
	}
	return &Message{
		Type:      messageType,
		Timestamp: ts,
		Signal:    payload[6],
		Data:      payload[headerLen:],
	}, i, nil
}
