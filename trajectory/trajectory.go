// Package trajectory generates per-axis target positions from a tick counter.
//
// The generator is stateless with respect to time: Generate(t) depends only on
// t and the current parameters, so a mode change takes effect on the next call
// with no smoothing.
package trajectory

import (
	"math"
	"sort"
	"sync"

	"github.com/nasa-jpl/pdosim/util"
)

// Mode names understood by the generator.  Any other name produces zeros.
const (
	Sin       = "sin"
	Triangle  = "triangle"
	Line      = "line"
	Lissajous = "lissajous"
	Circle    = "circle"
	Step      = "step"
)

var modes = map[string]func(p Params, t float64, tick int64, out []int32){
	Sin:       sinWave,
	Triangle:  triangleWave,
	Line:      lineWave,
	Lissajous: lissajous,
	Circle:    circle,
	Step:      stepWave,
}

// Modes returns the recognized mode names, sorted
func Modes() []string {
	out := make([]string, 0, len(modes))
	for k := range modes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Known returns true if mode is a recognized mode name
func Known(mode string) bool {
	_, ok := modes[mode]
	return ok
}

// Params holds the waveform parameters
type Params struct {
	// Mode is the waveform name
	Mode string `koanf:"Mode" yaml:"Mode"`

	// Amplitude is A, in position units
	Amplitude float64 `koanf:"Amplitude" yaml:"Amplitude"`

	// Period is P, in (scaled) ticks
	Period float64 `koanf:"Period" yaml:"Period"`

	// TimeBase divides the tick counter before evaluation.  Values <= 0 mean 1
	TimeBase float64 `koanf:"TimeBase" yaml:"TimeBase"`

	// PhaseOffset is the per-axis phase step of the sin mode, in radians.
	// Zero gives every axis the same value.
	PhaseOffset float64 `koanf:"PhaseOffset" yaml:"PhaseOffset"`
}

// DefaultParams returns sin, A=500, P=200
func DefaultParams() Params {
	return Params{Mode: Sin, Amplitude: 500, Period: 200, TimeBase: 1}
}

// Generator produces one target per axis for a given tick.
// It is safe for concurrent use.
type Generator struct {
	mu   sync.RWMutex
	axes int
	p    Params
}

// New returns a generator for n axes
func New(n int, p Params) *Generator {
	return &Generator{axes: n, p: p}
}

// Axes returns the number of targets produced per call
func (g *Generator) Axes() int {
	return g.axes
}

// Params returns a copy of the current parameters
func (g *Generator) Params() Params {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.p
}

// SetParams replaces every parameter at once
func (g *Generator) SetParams(p Params) {
	g.mu.Lock()
	g.p = p
	g.mu.Unlock()
}

// SetMode changes the waveform.  Unknown modes are accepted and yield zeros.
func (g *Generator) SetMode(mode string) {
	g.mu.Lock()
	g.p.Mode = mode
	g.mu.Unlock()
}

// Mode returns the current waveform name
func (g *Generator) Mode() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.p.Mode
}

// SetAmplitude sets A
func (g *Generator) SetAmplitude(a float64) {
	g.mu.Lock()
	g.p.Amplitude = a
	g.mu.Unlock()
}

// SetPeriod sets P
func (g *Generator) SetPeriod(p float64) {
	g.mu.Lock()
	g.p.Period = p
	g.mu.Unlock()
}

// Generate returns the targets for tick, index i belonging to the axis with
// the i-th smallest node id
func (g *Generator) Generate(tick int64) []int32 {
	g.mu.RLock()
	p := g.p
	g.mu.RUnlock()

	out := make([]int32, g.axes)
	fn, ok := modes[p.Mode]
	if !ok {
		return out
	}
	tb := p.TimeBase
	if tb <= 0 {
		tb = 1
	}
	fn(p, float64(tick)/tb, tick, out)
	return out
}

func sinWave(p Params, t float64, _ int64, out []int32) {
	if p.Period <= 0 {
		return
	}
	for i := range out {
		out[i] = util.RoundInt32(p.Amplitude * math.Sin(2*math.Pi*t/p.Period+float64(i)*p.PhaseOffset))
	}
}

func triangleWave(p Params, t float64, _ int64, out []int32) {
	if p.Period <= 0 {
		return
	}
	s := math.Mod(t, p.Period) / p.Period
	if s < 0 {
		s++
	}
	v := util.RoundInt32((2*math.Abs(2*s-1) - 1) * p.Amplitude)
	fill(out, v)
}

func lineWave(_ Params, t float64, _ int64, out []int32) {
	m := math.Mod(t, 4)
	if m < 0 {
		m += 4
	}
	fill(out, util.RoundInt32((m-2)*500))
}

func lissajous(_ Params, t float64, _ int64, out []int32) {
	if len(out) > 0 {
		out[0] = util.RoundInt32(1000 * math.Sin(t))
	}
	if len(out) > 1 {
		out[1] = util.RoundInt32(1000 * math.Sin(2*t))
	}
}

func circle(_ Params, t float64, _ int64, out []int32) {
	if len(out) > 0 {
		out[0] = util.RoundInt32(1000 * math.Cos(t))
	}
	if len(out) > 1 {
		out[1] = util.RoundInt32(1000 * math.Sin(t))
	}
}

// step alternates on the raw tick so the block length does not depend on TimeBase
func stepWave(_ Params, _ float64, tick int64, out []int32) {
	var v int32 = 1000
	if (tick/100)%2 != 0 {
		v = -1000
	}
	fill(out, v)
}

func fill(out []int32, v int32) {
	for i := range out {
		out[i] = v
	}
}
