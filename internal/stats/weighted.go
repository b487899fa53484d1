package stats

import "math"

// Pair is a value with its weight, e.g. days on market weighted by units sold.
type Pair struct {
	Value  *float64
	Weight *float64
}

// WeightedAverage computes sum(value*weight)/sum(weight) over pairs where
// both sides are present. It returns nil when the total weight is zero.
func WeightedAverage(pairs []Pair) *float64 {
	var sum, weights float64
	for _, p := range pairs {
		if p.Value == nil || p.Weight == nil {
			continue
		}
		sum += *p.Value * *p.Weight
		weights += *p.Weight
	}
	if weights == 0 {
		return nil
	}
	return ptr(sum / weights)
}

// Sum adds the present values. It returns nil only if none is present.
func Sum(values ...*float64) *float64 {
	var total float64
	seen := false
	for _, v := range values {
		if v == nil {
			continue
		}
		total += *v
		seen = true
	}
	if !seen {
		return nil
	}
	return ptr(total)
}

// Mean averages the present values. It returns nil if none is present.
func Mean(values ...*float64) *float64 {
	var total float64
	n := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		total += *v
		n++
	}
	if n == 0 {
		return nil
	}
	return ptr(total / float64(n))
}

// RoundPtr rounds a present value to the nearest integer.
func RoundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(math.Round(*v))
}

// CeilPtr rounds a present value up.
func CeilPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(math.Ceil(*v))
}
