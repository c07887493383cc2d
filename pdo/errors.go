package pdo

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLong is generated when a mapping or value list would not fit in 8 bytes
	ErrPayloadTooLong = errors.New("mapped registers exceed the 8 byte payload")

	// ErrBadSlot is generated for slot numbers below 1
	ErrBadSlot = errors.New("slot must be >= 1")

	// ErrBadNode is generated for node ids outside 1..127
	ErrBadNode = errors.New("node id must be in 1..127")

	// ErrCOBIDRange is generated when base + node + slot offset leaves the 11-bit range
	ErrCOBIDRange = errors.New("COB-ID exceeds 0x7FF")

	// ErrStrideOverlap is generated when slots above 1 would reuse slot 1 report ids
	ErrStrideOverlap = errors.New("slot stride must be at least 0x80 to map slots above 1")

	// ErrSyncOverlap is generated when the SYNC id lies in the slot 1 report range
	ErrSyncOverlap = errors.New("SYNC id overlaps the slot 1 report range")

	// ErrNotReport is generated when decoding a frame outside the report id range
	ErrNotReport = errors.New("frame id is not a single-register report")

	// ErrShortFrame is generated when decoding a report with fewer than 4 payload bytes
	ErrShortFrame = errors.New("frame payload shorter than one register")
)

// ConfigError is returned by mapping mutations that would violate the frame layout.
// The mutation is not applied.
type ConfigError struct {
	Node NodeID
	Slot int
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pdo mapping node %d slot %d: %v", e.Node, e.Slot, e.Err)
}

// Unwrap returns the underlying sentinel
func (e *ConfigError) Unwrap() error {
	return e.Err
}
