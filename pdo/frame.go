// Package pdo implements the process data object layer: the frame type,
// the COB-ID scheme, the little-endian payload codec and the per-axis
// register-to-frame mapping table.
package pdo

import (
	"fmt"
	"strings"
)

const (
	// MaxPayload is the largest frame payload in bytes
	MaxPayload = 8

	// MaxStdID is the largest 11-bit identifier
	MaxStdID = 0x7FF

	// MaxNode is the largest node id
	MaxNode = 0x7F

	// EntrySize is the number of bytes one mapped register occupies
	EntrySize = 4
)

// NodeID identifies an axis on the bus, 1..127
type NodeID uint8

// Valid returns true if n is in 1..MaxNode
func (n NodeID) Valid() bool {
	return n >= 1 && n <= MaxNode
}

// Frame is one message on the channel
type Frame struct {
	ID       uint16
	Extended bool
	Len      uint8
	Data     [MaxPayload]byte
}

// Payload returns the used portion of Data
func (f Frame) Payload() []byte {
	n := int(f.Len)
	if n > MaxPayload {
		n = MaxPayload
	}
	return f.Data[:n]
}

// String formats the frame like a candump line, e.g. "181#E8030000"
func (f Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%03X#", f.ID)
	for _, c := range f.Payload() {
		fmt.Fprintf(&b, "%02X", c)
	}
	return b.String()
}
