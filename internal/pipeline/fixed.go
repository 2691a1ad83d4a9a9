// SPDX-License-Identifier: MIT
package pipeline

import "math"

// q16One is 1.0 in signed 16.16 fixed point.
const q16One = 1 << 16

// ToQ16 converts x to signed 16.16 fixed point. The result is rounded
// towards negative infinity and saturates at the int32 range. NaN maps to
// zero.
func ToQ16(x float32) int32 {
	v := float64(x)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Floor(v * q16One)
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// ToSample16 packs a processed value back into a 16-bit sample by scaling
// into 16.16 fixed point and shifting the fraction out. The arithmetic
// shift floors, so ToSample16(x) == floor(x) for every x inside the int16
// range; values outside it saturate to math.MinInt16 or math.MaxInt16.
func ToSample16(x float32) int16 {
	return int16(ToQ16(x) >> 16)
}
