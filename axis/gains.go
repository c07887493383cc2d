package axis

import (
	"fmt"

	"go.uber.org/multierr"
)

// Position accumulation policies.  Velocity is a float but the position
// register is an integer, so each tick must decide what to do with the
// fractional part of the step.
const (
	// Round adds the step rounded half away from zero
	Round = "round"

	// Truncate adds the step rounded toward zero.  The position then stalls one
	// unit short of the target when the remaining error is 1.
	Truncate = "truncate"

	// Carry adds the integer part and carries the fraction to the next tick
	Carry = "carry"
)

// Gains parameterizes the control law
type Gains struct {
	// Kp is the proportional gain, velocity per unit of position error
	Kp float64 `koanf:"Kp" yaml:"Kp"`

	// VMax is the symmetric velocity limit
	VMax float64 `koanf:"VMax" yaml:"VMax"`

	// Kt converts velocity to the reported torque
	Kt float64 `koanf:"Kt" yaml:"Kt"`

	// SlowStopStep is the velocity removed per SlowStop call
	SlowStopStep float64 `koanf:"SlowStopStep" yaml:"SlowStopStep"`

	// Accumulation is one of Round, Truncate, Carry
	Accumulation string `koanf:"Accumulation" yaml:"Accumulation"`
}

// DefaultGains returns Kp=0.5, VMax=2000, Kt=0.5, 20 per slow stop call and
// truncating accumulation.  Truncation leaves a steady-state error of one count
// when approaching a target from below; use Round or Carry to converge exactly.
func DefaultGains() Gains {
	return Gains{Kp: 0.5, VMax: 2000, Kt: 0.5, SlowStopStep: 20, Accumulation: Truncate}
}

// Validate reports every problem with g at once
func (g Gains) Validate() error {
	var err error
	if g.Kp < 0 {
		err = multierr.Append(err, fmt.Errorf("Kp must be >= 0, got %v", g.Kp))
	}
	if g.VMax <= 0 {
		err = multierr.Append(err, fmt.Errorf("VMax must be > 0, got %v", g.VMax))
	}
	if g.SlowStopStep <= 0 {
		err = multierr.Append(err, fmt.Errorf("SlowStopStep must be > 0, got %v", g.SlowStopStep))
	}
	switch g.Accumulation {
	case Round, Truncate, Carry:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown accumulation policy %q", g.Accumulation))
	}
	return err
}
