package fleet

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/nasa-jpl/pdosim/axis"
	"github.com/nasa-jpl/pdosim/pdo"
	"github.com/nasa-jpl/pdosim/trajectory"
)

// Config is the static description of a fleet
type Config struct {
	// Axes is the number of axes, given node ids 1..Axes
	Axes int `koanf:"Axes" yaml:"Axes"`

	// PollTimeout bounds the receive wait of a tick with nothing queued
	PollTimeout time.Duration `koanf:"PollTimeout" yaml:"PollTimeout"`

	// HistoryWindow is the number of samples kept per axis
	HistoryWindow int `koanf:"HistoryWindow" yaml:"HistoryWindow"`

	// Parallel updates axes concurrently within a tick
	Parallel bool `koanf:"Parallel" yaml:"Parallel"`

	Trajectory trajectory.Params `koanf:"Trajectory" yaml:"Trajectory"`
	Control    axis.Gains        `koanf:"Control" yaml:"Control"`
	PDO        pdo.Codec         `koanf:"PDO" yaml:"PDO"`

	// Mapping is applied to every axis
	Mapping []pdo.Slot `koanf:"Mapping" yaml:"Mapping"`
}

// DefaultConfig returns five axes following a 500 unit sine
func DefaultConfig() Config {
	return Config{
		Axes:          5,
		PollTimeout:   2 * time.Millisecond,
		HistoryWindow: 200,
		Trajectory:    trajectory.DefaultParams(),
		Control:       axis.DefaultGains(),
		PDO:           pdo.DefaultCodec(),
		Mapping:       pdo.DefaultSlots(),
	}
}

// Validate reports every problem with c at once
func (c Config) Validate() error {
	var err error
	if c.Axes < 1 || c.Axes > pdo.MaxNode {
		err = multierr.Append(err, fmt.Errorf("Axes must be in 1..%d, got %d", pdo.MaxNode, c.Axes))
	}
	if c.PollTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("PollTimeout must be >= 0, got %v", c.PollTimeout))
	}
	if c.HistoryWindow < 1 {
		err = multierr.Append(err, fmt.Errorf("HistoryWindow must be >= 1, got %d", c.HistoryWindow))
	}
	if c.Trajectory.Period <= 0 {
		err = multierr.Append(err, fmt.Errorf("Trajectory.Period must be > 0, got %v", c.Trajectory.Period))
	}
	err = multierr.Append(err, c.Control.Validate())
	err = multierr.Append(err, c.PDO.Validate())
	if c.Axes >= 1 && c.Axes <= pdo.MaxNode {
		err = multierr.Append(err, checkMapping(c.PDO, pdo.NodeID(c.Axes), c.Mapping))
	}
	return err
}

// checkMapping validates slots against the highest node id, which has the largest COB-IDs
func checkMapping(c pdo.Codec, top pdo.NodeID, slots []pdo.Slot) error {
	return pdo.NewMappingTable(c).SetAll(top, slots)
}
