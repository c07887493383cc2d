package pdo

import (
	"sort"
	"sync"

	"github.com/nasa-jpl/pdosim/od"
)

// Slot is the mapping of one frame slot, used for bulk configuration
type Slot struct {
	Slot    int        `koanf:"Slot" yaml:"Slot"`
	Entries []od.Index `koanf:"Entries" yaml:"Entries"`
}

// DefaultSlots is the mapping applied to every axis at startup.
// Position, velocity and torque do not fit in one frame, so torque goes to slot 3.
func DefaultSlots() []Slot {
	return []Slot{
		{Slot: 1, Entries: []od.Index{od.Position}},
		{Slot: 2, Entries: []od.Index{od.Position, od.Velocity}},
		{Slot: 3, Entries: []od.Index{od.Torque}},
	}
}

// RegisterReader is the part of a register store read by Emit
type RegisterReader interface {
	Get(od.Index) (int32, bool)
}

// MappingTable maps (node, slot) to an ordered register list.
// Writers are serialized and readers receive copies, so a reader never sees a
// half-applied mutation.
type MappingTable struct {
	mu    sync.RWMutex
	codec Codec
	m     map[NodeID]map[int][]od.Index
}

// NewMappingTable returns an empty table
func NewMappingTable(c Codec) *MappingTable {
	return &MappingTable{codec: c, m: make(map[NodeID]map[int][]od.Index)}
}

// Codec returns the identifier layout the table validates against
func (t *MappingTable) Codec() Codec {
	return t.codec
}

func (t *MappingTable) validate(node NodeID, slot int, entries []od.Index) error {
	var err error
	switch {
	case !node.Valid():
		err = ErrBadNode
	case slot < 1:
		err = ErrBadSlot
	case len(entries)*EntrySize > MaxPayload:
		err = ErrPayloadTooLong
	case slot > 1 && len(entries) > 0 && t.codec.Stride <= MaxNode:
		err = ErrStrideOverlap
	default:
		_, err = t.codec.COBID(node, slot)
	}
	if err != nil {
		return &ConfigError{Node: node, Slot: slot, Err: err}
	}
	return nil
}

// Set replaces the entries of one slot.  An empty list clears the slot.
func (t *MappingTable) Set(node NodeID, slot int, entries []od.Index) error {
	if err := t.validate(node, slot, entries); err != nil {
		return err
	}
	cp := append([]od.Index(nil), entries...)
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(cp) == 0 {
		t.clear(node, slot)
		return nil
	}
	if t.m[node] == nil {
		t.m[node] = make(map[int][]od.Index)
	}
	t.m[node][slot] = cp
	return nil
}

// SetAll replaces every slot of node.  Either all slots are applied or none.
func (t *MappingTable) SetAll(node NodeID, slots []Slot) error {
	for _, s := range slots {
		if err := t.validate(node, s.Slot, s.Entries); err != nil {
			return err
		}
	}
	nm := make(map[int][]od.Index, len(slots))
	for _, s := range slots {
		if len(s.Entries) > 0 {
			nm[s.Slot] = append([]od.Index(nil), s.Entries...)
		}
	}
	t.mu.Lock()
	t.m[node] = nm
	t.mu.Unlock()
	return nil
}

// Clear empties one slot
func (t *MappingTable) Clear(node NodeID, slot int) {
	t.mu.Lock()
	t.clear(node, slot)
	t.mu.Unlock()
}

func (t *MappingTable) clear(node NodeID, slot int) {
	if nm, ok := t.m[node]; ok {
		delete(nm, slot)
	}
}

// Get returns a copy of one slot's entries, nil when unmapped
func (t *MappingTable) Get(node NodeID, slot int) []od.Index {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e := t.m[node][slot]
	if len(e) == 0 {
		return nil
	}
	return append([]od.Index(nil), e...)
}

// Slots returns a copy of every non-empty slot of node in increasing slot order
func (t *MappingTable) Slots(node NodeID) []Slot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	nm := t.m[node]
	out := make([]Slot, 0, len(nm))
	for s, e := range nm {
		if len(e) == 0 {
			continue
		}
		out = append(out, Slot{Slot: s, Entries: append([]od.Index(nil), e...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Emit encodes one frame per non-empty slot of node, in increasing slot order,
// from the current register values.  A register that was never written is sent as 0.
func (t *MappingTable) Emit(node NodeID, regs RegisterReader) ([]Frame, error) {
	slots := t.Slots(node)
	out := make([]Frame, 0, len(slots))
	for _, s := range slots {
		vals := make([]int32, len(s.Entries))
		for i, idx := range s.Entries {
			vals[i], _ = regs.Get(idx)
		}
		f, err := t.codec.Encode(node, s.Slot, vals)
		if err != nil {
			return out, &ConfigError{Node: node, Slot: s.Slot, Err: err}
		}
		out = append(out, f)
	}
	return out, nil
}
