package pdo_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/pdosim/pdo"
)

func ExampleCodec_Encode() {
	c := pdo.DefaultCodec()
	f, _ := c.Encode(1, 1, []int32{1000})
	fmt.Println(f)
	f, _ = c.Encode(3, 2, []int32{-1, 2})
	fmt.Println(f)
	// Output:
	// 181#E8030000
	// 283#FFFFFFFF02000000
}

func TestCOBID(t *testing.T) {
	c := pdo.DefaultCodec()
	cases := []struct {
		node pdo.NodeID
		slot int
		want uint16
	}{
		{1, 1, 0x181},
		{5, 1, 0x185},
		{1, 2, 0x281},
		{127, 4, 0x4FF},
	}
	for _, tc := range cases {
		got, err := c.COBID(tc.node, tc.slot)
		require.NoError(t, err)
		if got != tc.want {
			t.Errorf("node %d slot %d: expected 0x%03X got 0x%03X", tc.node, tc.slot, tc.want, got)
		}
	}
}

func TestLocate(t *testing.T) {
	c := pdo.DefaultCodec()
	node, slot, ok := c.Locate(0x283)
	require.True(t, ok)
	require.Equal(t, pdo.NodeID(3), node)
	require.Equal(t, 2, slot)

	for _, id := range []uint16{0x80, 0x180, 0x200, 0x300} {
		_, _, ok = c.Locate(id)
		if ok {
			t.Errorf("0x%03X should not address a node", id)
		}
	}
}

func TestCodecValidate(t *testing.T) {
	require.NoError(t, pdo.DefaultCodec().Validate())
	c := pdo.DefaultCodec()
	c.SyncID = 0x185
	require.ErrorIs(t, c.Validate(), pdo.ErrSyncOverlap)
}

func TestCOBIDOutOfRange(t *testing.T) {
	c := pdo.DefaultCodec()
	_, err := c.COBID(127, 8)
	require.ErrorIs(t, err, pdo.ErrCOBIDRange)
	_, err = c.COBID(0, 1)
	require.ErrorIs(t, err, pdo.ErrBadNode)
	_, err = c.COBID(1, 0)
	require.ErrorIs(t, err, pdo.ErrBadSlot)
}

func TestEncodeLength(t *testing.T) {
	c := pdo.DefaultCodec()
	for n := 0; n <= 2; n++ {
		f, err := c.Encode(1, 1, make([]int32, n))
		require.NoError(t, err)
		if int(f.Len) != 4*n {
			t.Errorf("expected length %d got %d", 4*n, f.Len)
		}
	}
	_, err := c.Encode(1, 1, make([]int32, 3))
	require.ErrorIs(t, err, pdo.ErrPayloadTooLong)
}

func TestRoundTripExtremes(t *testing.T) {
	c := pdo.DefaultCodec()
	for _, v := range []int32{0, 1, -1, 1000, -1000, math.MaxInt32, math.MinInt32} {
		f, err := c.Encode(9, 1, []int32{v})
		require.NoError(t, err)
		node, got, err := c.Decode(f)
		require.NoError(t, err)
		if node != 9 || got != v {
			t.Errorf("round trip of %d: got node %d value %d", v, node, got)
		}
	}
}

func TestDecodeFirstValueOfMultiEntry(t *testing.T) {
	c := pdo.DefaultCodec()
	f, err := c.Encode(2, 1, []int32{-5, 7})
	require.NoError(t, err)
	_, v, err := c.Decode(f)
	require.NoError(t, err)
	require.Equal(t, int32(-5), v)
	require.Equal(t, []int32{-5, 7}, pdo.Values(f))
}

func TestDecodeRejects(t *testing.T) {
	c := pdo.DefaultCodec()
	_, _, err := c.Decode(c.Sync())
	require.ErrorIs(t, err, pdo.ErrNotReport)

	f, err := c.Encode(1, 2, []int32{1})
	require.NoError(t, err)
	_, _, err = c.Decode(f)
	require.ErrorIs(t, err, pdo.ErrNotReport)

	_, _, err = c.Decode(pdo.Frame{ID: 0x181, Len: 2})
	require.ErrorIs(t, err, pdo.ErrShortFrame)

	_, _, err = c.Decode(pdo.Frame{ID: 0x180, Len: 4})
	require.True(t, errors.Is(err, pdo.ErrNotReport), "base id itself is not a report")
}

func TestSync(t *testing.T) {
	c := pdo.DefaultCodec()
	s := c.Sync()
	require.Equal(t, uint16(0x80), s.ID)
	require.Zero(t, s.Len)
	require.True(t, c.IsSync(s))
}
