// Package util contains misc internal utilities.
package util

import (
	"math"
	"strconv"
	"strings"
)

// Clamp limits input to the closed interval [low, high]
func Clamp(input, low, high float64) float64 {
	if input < low {
		return low
	}
	if input > high {
		return high
	}
	return input
}

// Sign returns -1, 0, or 1
func Sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// RoundInt32 rounds half away from zero and saturates at the int32 range
func RoundInt32(x float64) int32 {
	return saturate(math.Round(x))
}

func saturate(x float64) int32 {
	if math.IsNaN(x) {
		return 0
	}
	if x >= math.MaxInt32 {
		return math.MaxInt32
	}
	if x <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(x)
}

// Int32SliceToCSV convets a slice of int32s to CSV formatted data.
// e.g., []int32{1,2,3,4,5} => "1,2,3,4,5"
func Int32SliceToCSV(is []int32) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.FormatInt(int64(v), 10)
	}

	return strings.Join(s, ",")
}
