package axis_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/pdosim/axis"
	"github.com/nasa-jpl/pdosim/od"
)

func ExampleController_Step() {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(1000)
	for i := 0; i < 10; i++ {
		fmt.Print(a.Step().Position, " ")
	}
	fmt.Println()
	// Output: 500 750 875 937 968 984 992 996 998 999
}

func TestConvergesWithoutOvershoot(t *testing.T) {
	g := axis.DefaultGains()
	g.Accumulation = axis.Round
	a := axis.New(1, g)
	a.SetTarget(1000)
	prev := 0.
	for i := 0; i < 50; i++ {
		s := a.Step()
		if s.Position > 1000 {
			t.Fatalf("tick %d: overshoot to %f", i, s.Position)
		}
		if s.Position < prev {
			t.Fatalf("tick %d: position went backwards %f -> %f", i, prev, s.Position)
		}
		if s.Velocity > 2000 {
			t.Fatalf("tick %d: velocity %f exceeds the limit", i, s.Velocity)
		}
		prev = s.Position
	}
	require.Equal(t, 1000., prev)
	pos, _ := a.Registers().Get(od.Position)
	require.Equal(t, int32(1000), pos)
}

func TestClamp(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(1000000)
	s := a.Step()
	require.Equal(t, 2000., s.Velocity)
	require.Equal(t, 2000., s.Position)

	b := axis.New(2, axis.DefaultGains())
	b.SetTarget(-1000000)
	s = b.Step()
	require.Equal(t, -2000., s.Velocity)
}

func TestMissingTargetHolds(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.Registers().Delete(od.Target)
	for i := 0; i < 3; i++ {
		s := a.Step()
		require.Zero(t, s.Position)
		require.Zero(t, s.Velocity)
	}
	_, ok := a.Registers().Get(od.Target)
	require.False(t, ok, "stepping must never write the target register")
}

func TestTorqueFollowsVelocity(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(100)
	s := a.Step()
	require.Equal(t, 50., s.Velocity)
	require.Equal(t, 25., s.Torque)
	tq, _ := a.Registers().Get(od.Torque)
	require.Equal(t, int32(25), tq)
}

func TestSlowStopSequence(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(200)
	require.Equal(t, 100., a.Step().Velocity)
	pos := a.State().Position

	want := []float64{80, 60, 40, 20, 0, 0, 0}
	for i, w := range want {
		s := a.SlowStop()
		if s.Velocity != w {
			t.Errorf("call %d: expected %f got %f", i, w, s.Velocity)
		}
		if s.Position != pos {
			t.Errorf("call %d: slow stop moved the axis", i)
		}
	}
}

func TestSlowStopSnapsNegative(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(-60)
	require.Equal(t, -30., a.Step().Velocity)
	require.Zero(t, a.SlowStop().Velocity)
}

func TestEmergencyStop(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetControlword(axis.CWEnable)
	a.SetTarget(5000)
	a.Step()
	pos := a.State().Position
	s := a.EmergencyStop()
	require.Zero(t, s.Velocity)
	require.Equal(t, pos, s.Position)
	sw, _ := a.Registers().Get(od.Statusword)
	require.Equal(t, int32(0x2100), sw)
}

func TestStatusword(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	_, ok := a.Registers().Get(od.Statusword)
	require.False(t, ok)
	cases := map[int32]int32{axis.CWShutdown: 0x2100, axis.CWSwitchOn: 0x2300, axis.CWEnable: 0x2700}
	for cw, sw := range cases {
		a.SetControlword(cw)
		a.Step()
		got, _ := a.Registers().Get(od.Statusword)
		require.Equal(t, sw, got, "controlword 0x%02X", cw)
	}
	a.SetControlword(axis.CWEnable)
	a.Step()
	a.SetControlword(0x80)
	a.Step()
	got, _ := a.Registers().Get(od.Statusword)
	require.Equal(t, int32(0x2700), got, "unknown controlword leaves the statusword")
}

func TestReset(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(1000)
	a.Step()
	a.Reset()
	require.Equal(t, axis.State{}, a.State())
	for _, idx := range []od.Index{od.Position, od.Velocity, od.Torque, od.Target} {
		v, ok := a.Registers().Get(idx)
		require.True(t, ok)
		require.Zero(t, v, "register %s", idx)
	}
}

func TestTruncateStalls(t *testing.T) {
	require.Equal(t, axis.Truncate, axis.DefaultGains().Accumulation)
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(1000)
	for i := 0; i < 50; i++ {
		a.Step()
	}
	require.Equal(t, 999., a.State().Position)
}

func TestCarryConverges(t *testing.T) {
	g := axis.DefaultGains()
	g.Accumulation = axis.Carry
	a := axis.New(1, g)
	a.SetTarget(1000)
	for i := 0; i < 50; i++ {
		a.Step()
	}
	require.Equal(t, 1000., a.State().Position)
}

func TestCoast(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(100)
	a.Step() // pos 50, vel 50
	a.SlowStop()
	s := a.Coast()
	require.Equal(t, 30., s.Velocity)
	require.Equal(t, 80., s.Position)
}

func TestHoldStopsInPlace(t *testing.T) {
	a := axis.New(1, axis.DefaultGains())
	a.SetTarget(100)
	a.Step()
	s := a.Hold()
	require.Equal(t, axis.State{Position: 50}, s)
	v, _ := a.Registers().Get(od.Velocity)
	tq, _ := a.Registers().Get(od.Torque)
	require.Zero(t, v)
	require.Zero(t, tq)
	require.Equal(t, s, a.Hold())
}

func TestValidate(t *testing.T) {
	require.NoError(t, axis.DefaultGains().Validate())
	bad := axis.Gains{Kp: -1, VMax: 0, SlowStopStep: 0, Accumulation: "floor"}
	err := bad.Validate()
	require.Error(t, err)
	for _, frag := range []string{"Kp", "VMax", "SlowStopStep", "floor"} {
		require.Contains(t, err.Error(), frag)
	}
}
