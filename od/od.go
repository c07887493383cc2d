// Package od provides the per-axis register store, a flat map of 16-bit
// object indices to signed 32-bit values in the style of a CANopen object
// dictionary without sub-indices.
package od

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Index is a 16-bit object index
type Index uint16

const (
	// Controlword is the drive command register
	Controlword Index = 0x6040

	// Statusword is the drive state register
	Statusword Index = 0x6041

	// Position is the position actual value
	Position Index = 0x6064

	// Velocity is the velocity actual value
	Velocity Index = 0x606C

	// Torque is the torque actual value
	Torque Index = 0x6077

	// Target is the target position
	Target Index = 0x607A
)

var names = map[Index]string{
	Controlword: "Controlword",
	Statusword:  "Statusword",
	Position:    "Position actual value",
	Velocity:    "Velocity actual value",
	Torque:      "Torque actual value",
	Target:      "Target position",
}

// Candidates is the list of indices offered for mapping, in display order
var Candidates = []Index{Position, Velocity, Torque, Target, Statusword, Controlword}

// String returns e.g. "0x6064"
func (i Index) String() string {
	return fmt.Sprintf("0x%04X", uint16(i))
}

// Name returns the human readable name of the index, or its hex form when the
// index is not one the simulator interprets
func (i Index) Name() string {
	if n, ok := names[i]; ok {
		return n
	}
	return i.String()
}

// ParseIndex accepts a number in any Go integer syntax ("0x6064", "24676")
// or a register name, case insensitive ("position actual value", "Position")
func ParseIndex(s string) (Index, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 0, 16); err == nil {
		return Index(n), nil
	}
	for idx, name := range names {
		if strings.EqualFold(s, name) || strings.EqualFold(s, strings.Fields(name)[0]) {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("unknown register %q", s)
}

// Store holds the registers of one axis.  It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	regs map[Index]int32
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{regs: make(map[Index]int32)}
}

// Get returns the value at idx and whether it has ever been written
func (s *Store) Get(idx Index) (int32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.regs[idx]
	return v, ok
}

// GetOr returns the value at idx, or def if it was never written
func (s *Store) GetOr(idx Index, def int32) int32 {
	if v, ok := s.Get(idx); ok {
		return v
	}
	return def
}

// Set writes v at idx
func (s *Store) Set(idx Index, v int32) {
	s.mu.Lock()
	s.regs[idx] = v
	s.mu.Unlock()
}

// Delete removes idx, after which Get reports it missing
func (s *Store) Delete(idx Index) {
	s.mu.Lock()
	delete(s.regs, idx)
	s.mu.Unlock()
}

// Indices returns the written indices in increasing order
func (s *Store) Indices() []Index {
	s.mu.RLock()
	out := make([]Index, 0, len(s.regs))
	for k := range s.regs {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dump returns a copy of every register
func (s *Store) Dump() map[Index]int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Index]int32, len(s.regs))
	for k, v := range s.regs {
		out[k] = v
	}
	return out
}
