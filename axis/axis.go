// Package axis implements a simulated servo axis: a proportional position
// loop with a velocity clamp that reads its target from, and projects its
// state into, a private register store.
package axis

import (
	"math"
	"sync"

	"github.com/nasa-jpl/pdosim/od"
	"github.com/nasa-jpl/pdosim/pdo"
	"github.com/nasa-jpl/pdosim/util"
)

// Controlword commands and the statusword each one produces
var statusFor = map[int32]int32{
	0x06: 0x2100, // shutdown, ready to switch on
	0x07: 0x2300, // switch on, switched on
	0x0F: 0x2700, // enable operation, operation enabled
}

const (
	// CWShutdown is the controlword written on an emergency stop
	CWShutdown int32 = 0x06

	// CWSwitchOn switches the drive on without enabling operation
	CWSwitchOn int32 = 0x07

	// CWEnable enables operation
	CWEnable int32 = 0x0F
)

// State is the in-memory state of an axis
type State struct {
	Position float64 `json:"position"`
	Velocity float64 `json:"velocity"`
	Torque   float64 `json:"torque"`
}

// Controller is one axis.  Its registers are the only channel between it and
// the rest of the fleet.
type Controller struct {
	ID pdo.NodeID

	mu       sync.Mutex
	g        Gains
	s        State
	residual float64
	regs     *od.Store
}

// New returns an axis with all state at zero and the actual value registers written
func New(id pdo.NodeID, g Gains) *Controller {
	c := &Controller{ID: id, g: g, regs: od.NewStore()}
	c.project()
	return c
}

// Registers returns the axis' register store
func (c *Controller) Registers() *od.Store {
	return c.regs
}

// Gains returns the current gains
func (c *Controller) Gains() Gains {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.g
}

// SetGains replaces the gains, effective from the next update
func (c *Controller) SetGains(g Gains) {
	c.mu.Lock()
	c.g = g
	c.mu.Unlock()
}

// State returns a copy of the in-memory state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}

// Step runs one tick of the control law against the target register.
// A target that was never written holds the current position.
func (c *Controller) Step() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.s.Position
	if t, ok := c.regs.Get(od.Target); ok {
		target = float64(t)
	}
	v := c.g.Kp * (target - c.s.Position)
	c.s.Velocity = util.Clamp(v, -c.g.VMax, c.g.VMax)
	c.advance()
	return c.s
}

// Coast moves the axis by its current velocity without running the position loop
func (c *Controller) Coast() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
	return c.s
}

// Hold keeps position where it is, zeroes velocity and torque, and refreshes
// the registers
func (c *Controller) Hold() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Velocity = 0
	c.s.Torque = 0
	c.residual = 0
	c.project()
	return c.s
}

// SlowStop removes SlowStopStep of speed, snapping to zero once the remaining
// speed is below one step.  Position is not changed.
func (c *Controller) SlowStop() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Velocity -= util.Sign(c.s.Velocity) * c.g.SlowStopStep
	if math.Abs(c.s.Velocity) < c.g.SlowStopStep {
		c.s.Velocity = 0
	}
	c.s.Torque = c.s.Velocity * c.g.Kt
	c.project()
	return c.s
}

// EmergencyStop zeroes velocity immediately and writes the shutdown controlword
func (c *Controller) EmergencyStop() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Velocity = 0
	c.s.Torque = 0
	c.residual = 0
	c.regs.Set(od.Controlword, CWShutdown)
	c.project()
	return c.s
}

// Reset zeroes position, velocity, torque and target.  The controlword is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s = State{}
	c.residual = 0
	c.regs.Set(od.Target, 0)
	c.project()
}

// SetTarget writes the target register
func (c *Controller) SetTarget(v int32) {
	c.regs.Set(od.Target, v)
}

// SetControlword writes the controlword register; the statusword follows on the next update
func (c *Controller) SetControlword(v int32) {
	c.regs.Set(od.Controlword, v)
}

func (c *Controller) advance() {
	v := c.s.Velocity
	switch c.g.Accumulation {
	case Truncate:
		c.s.Position += math.Trunc(v)
	case Carry:
		sum := v + c.residual
		whole := math.Trunc(sum)
		c.residual = sum - whole
		c.s.Position += whole
	default:
		c.s.Position += math.Round(v)
	}
	c.s.Torque = v * c.g.Kt
	c.project()
}

// project writes the in-memory state to the actual value registers.  The
// target register is never written here.
func (c *Controller) project() {
	c.regs.Set(od.Position, util.RoundInt32(c.s.Position))
	c.regs.Set(od.Velocity, util.RoundInt32(c.s.Velocity))
	c.regs.Set(od.Torque, util.RoundInt32(c.s.Torque))
	if cw, ok := c.regs.Get(od.Controlword); ok {
		if sw, ok := statusFor[cw]; ok {
			c.regs.Set(od.Statusword, sw)
		}
	}
}
