// Package ticks implements media time arithmetic.
//
// All timeline values are integer ticks of a timescale
// (ticks per second). Conversion to time.Duration or
// floating seconds happens only at the manifest boundary.
package ticks

import "time"

// FromDuration converts d to ticks, rounding toward zero.
func FromDuration(d time.Duration, timescale int64) int64 {
	sec := int64(d / time.Second)
	rem := int64(d % time.Second)
	return sec*timescale + rem*timescale/int64(time.Second)
}

// ToDuration converts ticks to time.Duration, rounding toward zero.
func ToDuration(t, timescale int64) time.Duration {
	sec := t / timescale
	rem := t % timescale
	return time.Duration(sec)*time.Second + time.Duration(rem*int64(time.Second)/timescale)
}

// Seconds converts ticks to seconds.
func Seconds(t, timescale int64) float64 {
	return float64(t) / float64(timescale)
}

// Abs returns absolute value of x.
func Abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Near reports whether a and b differ by less than tol.
// Zero tolerance means exact equality.
func Near(a, b, tol int64) bool {
	if tol <= 0 {
		return a == b
	}
	return Abs(a-b) < tol
}
