// Package fleet runs the cyclic exchange between a set of axes and the
// supervisor that records their reports.
//
// One call to Tick performs, in order: target generation and distribution,
// the SYNC broadcast, the update and transmit of every axis in node order,
// and a bounded drain of the supervisor's receive queue into per-axis
// history.  Tick never sleeps beyond that bounded drain; pacing is the job of
// Runner.
package fleet

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nasa-jpl/pdosim/axis"
	"github.com/nasa-jpl/pdosim/bus"
	"github.com/nasa-jpl/pdosim/generichttp/motion"
	"github.com/nasa-jpl/pdosim/od"
	"github.com/nasa-jpl/pdosim/pdo"
	"github.com/nasa-jpl/pdosim/trajectory"
)

// ErrUnknownAxis is generated for node ids not in the fleet
var ErrUnknownAxis = motion.ErrUnknownAxis

// RunState is the motion state of the whole fleet
type RunState int

const (
	// Running axes follow their targets
	Running RunState = iota

	// Stopping axes decelerate by SlowStopStep per tick
	Stopping

	// Halted axes hold position
	Halted
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// Report summarizes one tick
type Report struct {
	Tick         int64    `json:"tick"`
	State        string   `json:"state"`
	Targets      []int32  `json:"targets"`
	Sent         int      `json:"sent"`
	SendErrors   int      `json:"sendErrors"`
	Received     int      `json:"received"`
	Reports      int      `json:"reports"`
	Ignored      int      `json:"ignored"`
	DecodeErrors int      `json:"decodeErrors"`
	Elapsed      Duration `json:"elapsed"`
}

// Duration marshals as a string like "1.2ms"
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Fleet is a set of axes sharing a bus with a supervisor.  All methods are
// safe for concurrent use; Tick and the mutations are serialized.
type Fleet struct {
	mu    sync.Mutex
	cfg   Config
	axes  []*axis.Controller
	byID  map[pdo.NodeID]*axis.Controller
	gen   *trajectory.Generator
	table *pdo.MappingTable
	codec pdo.Codec
	tx    bus.Endpoint
	rx    bus.Endpoint
	hist  map[pdo.NodeID]*History
	tick  int64
	state RunState

	lastSendErr bool
}

// New creates the axes 1..cfg.Axes, applies the mapping to each and enables
// them.  Axes transmit on tx; the supervisor drains rx.  rx may be nil, in
// which case no history is recorded.
func New(cfg Config, tx, rx bus.Endpoint) (*Fleet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fleet config: %w", err)
	}
	f := &Fleet{
		cfg:   cfg,
		byID:  make(map[pdo.NodeID]*axis.Controller, cfg.Axes),
		gen:   trajectory.New(cfg.Axes, cfg.Trajectory),
		table: pdo.NewMappingTable(cfg.PDO),
		codec: cfg.PDO,
		tx:    tx,
		rx:    rx,
		hist:  make(map[pdo.NodeID]*History, cfg.Axes),
		state: Running,
	}
	for i := 1; i <= cfg.Axes; i++ {
		id := pdo.NodeID(i)
		a := axis.New(id, cfg.Control)
		a.SetControlword(axis.CWEnable)
		if err := f.table.SetAll(id, cfg.Mapping); err != nil {
			return nil, err
		}
		f.axes = append(f.axes, a)
		f.byID[id] = a
		f.hist[id] = NewHistory(cfg.HistoryWindow)
	}
	return f, nil
}

// Tick runs one cycle and returns what happened.  It always completes;
// anomalies are logged and counted in the report.
func (f *Fleet) Tick() Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := time.Now()
	r := Report{Tick: f.tick}

	// 1. targets
	r.Targets = f.gen.Generate(f.tick)
	for i, a := range f.axes {
		a.SetTarget(r.Targets[i])
	}

	// 2. SYNC
	f.send(f.codec.Sync(), &r)

	// 3. update and transmit, node order
	for _, frames := range f.updateAll() {
		for _, fr := range frames {
			f.send(fr, &r)
		}
	}
	if f.state == Stopping && f.still() {
		f.state = Halted
		log.Printf("fleet: all axes stopped at tick %d", f.tick)
	}

	// 4. receive
	f.drain(&r)

	// 5.
	f.tick++
	r.State = f.state.String()
	r.Elapsed = Duration(time.Since(start))
	return r
}

func (f *Fleet) updateAll() [][]pdo.Frame {
	out := make([][]pdo.Frame, len(f.axes))
	if !f.cfg.Parallel {
		for i, a := range f.axes {
			frames, err := f.update(a)
			if err != nil {
				log.Printf("fleet: axis %d: %v", a.ID, err)
			}
			out[i] = frames
		}
		return out
	}
	var g errgroup.Group
	for i, a := range f.axes {
		i, a := i, a
		g.Go(func() error {
			frames, err := f.update(a)
			out[i] = frames
			if err != nil {
				return fmt.Errorf("axis %d: %w", a.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("fleet: %v", err)
	}
	return out
}

// update advances one axis according to the run state and encodes its frames.
// It touches only that axis' registers.
func (f *Fleet) update(a *axis.Controller) ([]pdo.Frame, error) {
	switch f.state {
	case Running:
		if enabled(a) {
			a.Step()
		} else {
			a.Hold()
		}
	case Stopping:
		if enabled(a) {
			a.SlowStop()
			a.Coast()
		} else {
			a.Hold()
		}
	default:
		a.Hold()
	}
	return f.table.Emit(a.ID, a.Registers())
}

func enabled(a *axis.Controller) bool {
	cw, ok := a.Registers().Get(od.Controlword)
	return !ok || cw == axis.CWEnable
}

func (f *Fleet) still() bool {
	for _, a := range f.axes {
		if a.State().Velocity != 0 {
			return false
		}
	}
	return true
}

func (f *Fleet) send(fr pdo.Frame, r *Report) {
	if f.tx == nil {
		return
	}
	if err := f.tx.Send(fr); err != nil {
		r.SendErrors++
		// only log the first of a run of failures
		if !f.lastSendErr {
			log.Printf("fleet: send %s: %v", fr, err)
		}
		f.lastSendErr = true
		return
	}
	f.lastSendErr = false
	r.Sent++
}

// maxDrain caps the frames consumed per tick so a chatty peer cannot stall the cycle
const maxDrain = 4096

// drain empties the receive queue.  If nothing is queued it waits once for
// at most PollTimeout; a timeout is the normal idle outcome.
func (f *Fleet) drain(r *Report) {
	if f.rx == nil {
		return
	}
	waited := false
	for r.Received < maxDrain {
		fr, err := f.rx.Recv(0)
		if errors.Is(err, bus.ErrTimeout) && !waited && r.Received == 0 {
			waited = true
			fr, err = f.rx.Recv(f.cfg.PollTimeout)
		}
		if err != nil {
			if !errors.Is(err, bus.ErrTimeout) {
				log.Printf("fleet: receive: %v", err)
			}
			return
		}
		f.record(fr, r)
	}
}

func (f *Fleet) record(fr pdo.Frame, r *Report) {
	r.Received++
	if !f.codec.IsReport(fr.ID) {
		r.Ignored++
		return
	}
	node, v, err := f.codec.Decode(fr)
	if err != nil {
		r.DecodeErrors++
		return
	}
	h, ok := f.hist[node]
	if !ok {
		r.Ignored++
		return
	}
	h.Append(v)
	r.Reports++
}

func (f *Fleet) axis(id pdo.NodeID) (*axis.Controller, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownAxis)
	}
	return a, nil
}
