package bus_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/pdosim/bus"
	"github.com/nasa-jpl/pdosim/pdo"
)

func frame(id uint16, data ...byte) pdo.Frame {
	f := pdo.Frame{ID: id, Len: uint8(len(data))}
	copy(f.Data[:], data)
	return f
}

func TestVirtualFanOut(t *testing.T) {
	v := bus.NewVirtual(8)
	a, b, c := v.Port("a"), v.Port("b"), v.Port("c")
	require.NoError(t, a.Send(frame(0x181, 1, 2, 3, 4)))

	for _, p := range []*bus.Port{b, c} {
		f, err := p.Recv(time.Second)
		require.NoError(t, err)
		require.Equal(t, uint16(0x181), f.ID)
	}
	_, err := a.Recv(0)
	require.ErrorIs(t, err, bus.ErrTimeout, "sender must not hear itself by default")
}

func TestVirtualReceiveOwn(t *testing.T) {
	v := bus.NewVirtual(8)
	v.ReceiveOwn = true
	a := v.Port("a")
	require.NoError(t, a.Send(frame(0x80)))
	f, err := a.Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, uint16(0x80), f.ID)
}

func TestVirtualOrder(t *testing.T) {
	v := bus.NewVirtual(16)
	a, b := v.Port("a"), v.Port("b")
	for i := uint16(1); i <= 5; i++ {
		require.NoError(t, a.Send(frame(0x180+i)))
	}
	for i := uint16(1); i <= 5; i++ {
		f, err := b.Recv(time.Second)
		require.NoError(t, err)
		require.Equal(t, 0x180+i, f.ID)
	}
}

func TestVirtualTimeout(t *testing.T) {
	v := bus.NewVirtual(1)
	p := v.Port("p")
	start := time.Now()
	_, err := p.Recv(5 * time.Millisecond)
	require.ErrorIs(t, err, bus.ErrTimeout)
	require.GreaterOrEqual(t, int64(time.Since(start)), int64(5*time.Millisecond))
}

func TestVirtualDropsWhenFull(t *testing.T) {
	v := bus.NewVirtual(2)
	a, b := v.Port("a"), v.Port("b")
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Send(frame(0x181)))
	}
	require.Equal(t, 2, b.Pending())
	require.Equal(t, uint64(3), b.Stats().Dropped)
	require.Equal(t, uint64(5), a.Stats().Sent)
}

func TestVirtualFilter(t *testing.T) {
	v := bus.NewVirtual(4)
	a, b := v.Port("a"), v.Port("b")
	b.SetFilter(func(id uint16) bool { return id != 0x80 })
	require.NoError(t, a.Send(frame(0x80)))
	require.NoError(t, a.Send(frame(0x181)))
	f, err := b.Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, uint16(0x181), f.ID)
	require.Zero(t, b.Pending())
}

func TestVirtualClose(t *testing.T) {
	v := bus.NewVirtual(4)
	a, b := v.Port("a"), v.Port("b")
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.NoError(t, a.Send(frame(0x181)))
	_, err := b.Recv(time.Millisecond)
	require.ErrorIs(t, err, bus.ErrClosed)
	require.ErrorIs(t, b.Send(frame(0x181)), bus.ErrClosed)
}

func TestStreamOverPipe(t *testing.T) {
	left, right := net.Pipe()
	a := bus.NewStream(left, 8)
	b := bus.NewStream(right, 8)
	defer a.Close()
	defer b.Close()

	// 0x0A, 0x0D and 0x5E in the payload exercise escaping
	want := frame(0x20D, 0x0A, 0x0D, 0x5E, 0xFF, 0, 0, 0, 0x0A)
	go func() { _ = a.Send(want) }()
	got, err := b.Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestBridge(t *testing.T) {
	v := bus.NewVirtual(8)
	src, tap := v.Port("src"), v.Port("tap")
	w := bus.NewVirtual(8)
	out, sink := w.Port("out"), w.Port("sink")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Bridge(ctx, tap, out, time.Millisecond) }()

	require.NoError(t, src.Send(frame(0x183, 9, 0, 0, 0)))
	f, err := sink.Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, uint16(0x183), f.ID)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
