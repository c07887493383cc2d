package pdo

import (
	"encoding/binary"
	"fmt"
)

// dataOrder is the payload byte order
var dataOrder = binary.LittleEndian

// Codec holds the identifier layout.  The zero value is not useful; use DefaultCodec.
type Codec struct {
	// Base is the COB-ID of node 0 slot 1, 0x180 for TPDO1
	Base uint16 `koanf:"Base" yaml:"Base"`

	// Stride is the COB-ID distance between slots, 0x100
	Stride uint16 `koanf:"Stride" yaml:"Stride"`

	// SyncID is the SYNC identifier, 0x80
	SyncID uint16 `koanf:"SyncID" yaml:"SyncID"`
}

// DefaultCodec returns the CANopen predefined connection set values
func DefaultCodec() Codec {
	return Codec{Base: 0x180, Stride: 0x100, SyncID: 0x80}
}

// Validate checks that SYNC cannot be mistaken for a report
func (c Codec) Validate() error {
	if c.IsReport(c.SyncID) {
		return fmt.Errorf("0x%03X: %w", c.SyncID, ErrSyncOverlap)
	}
	return nil
}

// COBID returns the identifier of a node's slot
func (c Codec) COBID(node NodeID, slot int) (uint16, error) {
	if !node.Valid() {
		return 0, ErrBadNode
	}
	if slot < 1 {
		return 0, ErrBadSlot
	}
	id := int(c.Base) + int(node) + (slot-1)*int(c.Stride)
	if id > MaxStdID {
		return 0, ErrCOBIDRange
	}
	return uint16(id), nil
}

// Encode packs values little-endian into one frame addressed to node's slot
func (c Codec) Encode(node NodeID, slot int, values []int32) (Frame, error) {
	if len(values)*EntrySize > MaxPayload {
		return Frame{}, ErrPayloadTooLong
	}
	id, err := c.COBID(node, slot)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{ID: id, Len: uint8(len(values) * EntrySize)}
	for i, v := range values {
		dataOrder.PutUint32(f.Data[i*EntrySize:], uint32(v))
	}
	return f, nil
}

// Values unpacks every complete 4-byte group of the payload
func Values(f Frame) []int32 {
	p := f.Payload()
	out := make([]int32, len(p)/EntrySize)
	for i := range out {
		out[i] = int32(dataOrder.Uint32(p[i*EntrySize:]))
	}
	return out
}

// IsReport returns true if id lies in the slot 1 range Base+1..Base+127
func (c Codec) IsReport(id uint16) bool {
	return id >= c.Base+1 && id <= c.Base+MaxNode
}

// Decode extracts the node and first value of a slot 1 report
func (c Codec) Decode(f Frame) (NodeID, int32, error) {
	if f.Extended || !c.IsReport(f.ID) {
		return 0, 0, fmt.Errorf("%w: 0x%03X", ErrNotReport, f.ID)
	}
	if f.Len < EntrySize {
		return 0, 0, ErrShortFrame
	}
	return NodeID(f.ID - c.Base), int32(dataOrder.Uint32(f.Data[:EntrySize])), nil
}

// Sync returns the SYNC frame.  Receivers never read its payload, so it is empty.
func (c Codec) Sync() Frame {
	return Frame{ID: c.SyncID}
}

// IsSync returns true if f is a SYNC frame
func (c Codec) IsSync(f Frame) bool {
	return !f.Extended && f.ID == c.SyncID
}

// Locate returns the node and slot an identifier addresses
func (c Codec) Locate(id uint16) (NodeID, int, bool) {
	if c.Stride == 0 || id <= c.Base {
		return 0, 0, false
	}
	off := id - c.Base
	node := NodeID(off % c.Stride)
	if !node.Valid() {
		return 0, 0, false
	}
	return node, int(off/c.Stride) + 1, true
}
