// Package stats holds the pure arithmetic used by reports and rollups.
// Absent values are nil pointers; no function here divides by zero.
package stats

import "math"

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Delta returns the percent change from prev to cur rounded to two decimals.
//
// Both values missing (or cur missing with prev zero) is "no change" and
// yields 0. A missing baseline, a zero baseline with a non-zero current
// value, or a missing current value against a real baseline yield nil.
func Delta(cur, prev *float64) *float64 {
	if cur == nil && (prev == nil || *prev == 0) {
		return ptr(0)
	}
	if prev == nil || cur == nil {
		return nil
	}
	if *prev == 0 {
		if *cur == 0 {
			return ptr(0)
		}
		return nil
	}
	return ptr(Round2(100 * (*cur - *prev) / *prev))
}

// Percent returns round2(100*part/whole), or nil when either side is
// missing or whole is zero.
func Percent(part, whole *float64) *float64 {
	if part == nil || whole == nil || *whole == 0 {
		return nil
	}
	return ptr(Round2(100 * *part / *whole))
}

// Ratio returns round2(num/den), or nil when either side is missing or den is zero.
func Ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return ptr(Round2(*num / *den))
}

func ptr(v float64) *float64 {
	return &v
}
