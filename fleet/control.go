package fleet

import (
	"errors"
	"fmt"
	"log"

	"github.com/nasa-jpl/pdosim/axis"
	"github.com/nasa-jpl/pdosim/od"
	"github.com/nasa-jpl/pdosim/pdo"
	"github.com/nasa-jpl/pdosim/trajectory"
)

// ErrBadParam is generated for out of range waveform parameters
var ErrBadParam = errors.New("invalid parameter")

// AxisSnapshot is the externally visible state of one axis
type AxisSnapshot struct {
	ID         pdo.NodeID `json:"id"`
	Position   float64    `json:"position"`
	Velocity   float64    `json:"velocity"`
	Torque     float64    `json:"torque"`
	Target     int32      `json:"target"`
	Statusword int32      `json:"statusword"`
	History    []int32    `json:"history"`
}

// Snapshot is a read-only copy of the fleet
type Snapshot struct {
	Tick  int64          `json:"tick"`
	State string         `json:"state"`
	Mode  string         `json:"mode"`
	Axes  []AxisSnapshot `json:"axes"`
}

// Snapshot copies the state of every axis
func (f *Fleet) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Snapshot{Tick: f.tick, State: f.state.String(), Mode: f.gen.Mode()}
	s.Axes = make([]AxisSnapshot, len(f.axes))
	for i, a := range f.axes {
		st := a.State()
		regs := a.Registers()
		s.Axes[i] = AxisSnapshot{
			ID:         a.ID,
			Position:   st.Position,
			Velocity:   st.Velocity,
			Torque:     st.Torque,
			Target:     regs.GetOr(od.Target, 0),
			Statusword: regs.GetOr(od.Statusword, 0),
			History:    f.hist[a.ID].Values(),
		}
	}
	return s
}

// Axes returns the node ids, ascending
func (f *Fleet) Axes() []pdo.NodeID {
	out := make([]pdo.NodeID, len(f.axes))
	for i, a := range f.axes {
		out[i] = a.ID
	}
	return out
}

// AxisState returns the in-memory state of one axis
func (f *Fleet) AxisState(id pdo.NodeID) (axis.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.axis(id)
	if err != nil {
		return axis.State{}, err
	}
	return a.State(), nil
}

// History returns the recorded samples of one axis, oldest first
func (f *Fleet) History(id pdo.NodeID) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hist[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownAxis)
	}
	return h.Values(), nil
}

// Register reads one register of one axis
func (f *Fleet) Register(id pdo.NodeID, idx od.Index) (int32, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.axis(id)
	if err != nil {
		return 0, false, err
	}
	v, ok := a.Registers().Get(idx)
	return v, ok, nil
}

// TickCount returns the number of completed ticks
func (f *Fleet) TickCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tick
}

// State returns the run state
func (f *Fleet) State() RunState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Mode returns the waveform name
func (f *Fleet) Mode() string {
	return f.gen.Mode()
}

// SetMode changes the waveform from the next tick.  Unrecognized names are
// accepted and produce zero targets.
func (f *Fleet) SetMode(mode string) error {
	if !trajectory.Known(mode) {
		log.Printf("fleet: unknown mode %q, targets will be zero", mode)
	}
	f.gen.SetMode(mode)
	return nil
}

// Params returns the waveform parameters
func (f *Fleet) Params() trajectory.Params {
	return f.gen.Params()
}

// SetParams replaces every waveform parameter
func (f *Fleet) SetParams(p trajectory.Params) error {
	if p.Period <= 0 {
		return fmt.Errorf("period %v: %w", p.Period, ErrBadParam)
	}
	f.gen.SetParams(p)
	return nil
}

// SetAmplitude sets the waveform amplitude
func (f *Fleet) SetAmplitude(a float64) error {
	f.gen.SetAmplitude(a)
	return nil
}

// SetPeriod sets the waveform period, which must be positive
func (f *Fleet) SetPeriod(p float64) error {
	if p <= 0 {
		return fmt.Errorf("period %v: %w", p, ErrBadParam)
	}
	f.gen.SetPeriod(p)
	return nil
}

// Mapping returns the slots of one axis
func (f *Fleet) Mapping(id pdo.NodeID) ([]pdo.Slot, error) {
	if _, err := f.lookup(id); err != nil {
		return nil, err
	}
	return f.table.Slots(id), nil
}

// SetMapping replaces one slot of one axis.  A mapping that would not fit a
// frame is rejected with a *pdo.ConfigError and nothing changes.
func (f *Fleet) SetMapping(id pdo.NodeID, slot int, entries []od.Index) error {
	if _, err := f.lookup(id); err != nil {
		return err
	}
	return f.table.Set(id, slot, entries)
}

// ClearMapping empties one slot of one axis
func (f *Fleet) ClearMapping(id pdo.NodeID, slot int) error {
	if _, err := f.lookup(id); err != nil {
		return err
	}
	f.table.Clear(id, slot)
	return nil
}

// SetAllMappings applies slots to every axis.  They are checked against the
// highest node id first, so either every axis changes or none does.
func (f *Fleet) SetAllMappings(slots []pdo.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := checkMapping(f.codec, f.axes[len(f.axes)-1].ID, slots); err != nil {
		return err
	}
	for _, a := range f.axes {
		if err := f.table.SetAll(a.ID, slots); err != nil {
			return err
		}
	}
	return nil
}

// SetGains replaces the control law parameters of every axis
func (f *Fleet) SetGains(g axis.Gains) error {
	if err := g.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.axes {
		a.SetGains(g)
	}
	f.cfg.Control = g
	return nil
}

// SetHistoryWindow changes the number of samples kept per axis
func (f *Fleet) SetHistoryWindow(n int) error {
	if n < 1 {
		return fmt.Errorf("history window %d: %w", n, ErrBadParam)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hist {
		h.Resize(n)
	}
	f.cfg.HistoryWindow = n
	return nil
}

// Start enables every axis and resumes following targets
func (f *Fleet) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.axes {
		a.SetControlword(axis.CWEnable)
	}
	if f.state != Running {
		log.Printf("fleet: %s -> running at tick %d", f.state, f.tick)
	}
	f.state = Running
	return nil
}

// Stop requests a graceful stop: each following tick removes SlowStopStep of
// speed until every axis is still, then the fleet halts
func (f *Fleet) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Running {
		f.state = Stopping
		log.Printf("fleet: stopping at tick %d", f.tick)
	}
	return nil
}

// EmergencyStop zeroes every velocity now and halts the fleet
func (f *Fleet) EmergencyStop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.axes {
		a.EmergencyStop()
	}
	f.state = Halted
	log.Printf("fleet: emergency stop at tick %d", f.tick)
	return nil
}

// Reset zeroes position, velocity, torque and target of every axis and clears
// history.  The mapping, the run state and the tick counter are kept.
func (f *Fleet) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.axes {
		a.Reset()
		f.hist[a.ID].Reset()
	}
	return nil
}

// EnableAxis sets one axis' controlword to enable operation or shutdown.
// A disabled axis stops where it is.
func (f *Fleet) EnableAxis(id pdo.NodeID, on bool) error {
	a, err := f.lookup(id)
	if err != nil {
		return err
	}
	if on {
		a.SetControlword(axis.CWEnable)
	} else {
		a.SetControlword(axis.CWShutdown)
		a.Hold()
	}
	return nil
}

// AxisEnabled reports whether one axis follows its target while running
func (f *Fleet) AxisEnabled(id pdo.NodeID) (bool, error) {
	a, err := f.lookup(id)
	if err != nil {
		return false, err
	}
	return enabled(a), nil
}

// StopAxis zeroes one axis' velocity and disables it
func (f *Fleet) StopAxis(id pdo.NodeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, err := f.axis(id)
	if err != nil {
		return err
	}
	a.EmergencyStop()
	return nil
}

func (f *Fleet) lookup(id pdo.NodeID) (*axis.Controller, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.axis(id)
}
