package beast

import (
	"time"
)

// Beast message types
const (
	SyncByte   = 0x1A // also the escape byte inside a message
	ModeAC     = 0x31 // Mode A/C reply
	ModeS      = 0x32 // Mode S short (56 bits)
	ModeSLong  = 0x33 // Mode S long (112 bits)
	ModeStatus = 0x34 // receiver status
)

// TickRate is the frequency of the Beast timestamp counter
const TickRate = 12000000

// headerLen is the timestamp and signal level preceding the frame
const headerLen = 7

// Message is one unescaped Beast message
type Message struct {
	Type      byte
	Timestamp uint64 // 48-bit counter at TickRate
	Signal    byte
	Data      []byte
}

// DataLength returns the frame length carried by a message type, or zero for
// an unknown type
func DataLength(messageType byte) int {
	switch messageType {
	case ModeAC, ModeStatus:
		return 2
	case ModeS:
		return 7
	case ModeSLong:
		return 14
	default:
		return 0
	}
}

// IsLong reports whether the message carries a 112-bit Mode S frame
func (msg *Message) IsLong() bool {
	return msg.Type == ModeSLong && len(msg.Data) == 14
}

// DF returns the downlink format of a Mode S frame
func (msg *Message) DF() byte {
	if (msg.Type != ModeS && msg.Type != ModeSLong) || len(msg.Data) < 1 {
		return 0
	}
	return msg.Data[0] >> 3
}

// ICAO returns the address field of a Mode S frame. It is only the
// transmitter address for DF11, DF17 and DF18.
func (msg *Message) ICAO() uint32 {
	if (msg.Type != ModeS && msg.Type != ModeSLong) || len(msg.Data) < 4 {
		return 0
	}
	return uint32(msg.Data[1])<<16 | uint32(msg.Data[2])<<8 | uint32(msg.Data[3])
}

// Elapsed converts the receiver timestamp to a duration since the counter
// started
func (msg *Message) Elapsed() time.Duration {
	return time.Duration(msg.Timestamp/12) * time.Microsecond
}

// Power returns the signal level as linear power in (0, 1]. Receivers send
// the square root of the power scaled to 255.
func (msg *Message) Power() float64 {
	level := float64(msg.Signal) / 255
	return level * level
}

// Encode returns the escaped wire form of the message
func (msg *Message) Encode() []byte {
	out := make([]byte, 0, 2+2*(headerLen+len(msg.Data)))
	out = append(out, SyncByte, msg.Type)

	payload := make([]byte, 0, headerLen+len(msg.Data))
	for i := 5; i >= 0; i-- {
		payload = append(payload, byte(msg.Timestamp>>(8*uint(i))))
	}
	payload = append(payload, msg.Signal)
	payload = append(payload, msg.Data...)

	for _, b := range payload {
		if b == SyncByte {
			out = append(out, SyncByte)
		}
		out = append(out, b)
	}
	return out
}
