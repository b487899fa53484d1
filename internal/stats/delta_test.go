package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 {
	return &v
}

func TestDelta(t *testing.T) {
	tests := []struct {
		name string
		cur  *float64
		prev *float64
		want *float64
	}{
		{name: "increase", cur: f(100), prev: f(50), want: f(50)},
		{name: "decrease", cur: f(50), prev: f(100), want: f(-50)},
		{name: "both zero", cur: f(0), prev: f(0), want: f(0)},
		{name: "both missing", cur: nil, prev: nil, want: f(0)},
		{name: "missing current with zero baseline", cur: nil, prev: f(0), want: f(0)},
		{name: "missing baseline", cur: f(10), prev: nil, want: nil},
		{name: "zero baseline", cur: f(10), prev: f(0), want: nil},
		{name: "missing current", cur: nil, prev: f(10), want: nil},
		{name: "rounded to two decimals", cur: f(2), prev: f(3), want: f(-33.33)},
		{name: "fractional growth", cur: f(101.5), prev: f(100), want: f(1.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delta(tt.cur, tt.prev)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.InDelta(t, *tt.want, *got, 1e-9)
			}
		})
	}
}

func TestDelta_SameValueIsZero(t *testing.T) {
	for _, x := range []float64{-7, 0.5, 1, 42, 1e6} {
		got := Delta(f(x), f(x))
		if assert.NotNil(t, got, "x=%v", x) {
			assert.Equal(t, 0.0, *got, "x=%v", x)
		}
	}
}

func TestPercentAndRatio(t *testing.T) {
	assert.Equal(t, 37.5, *Percent(f(3), f(8)))
	assert.Nil(t, Percent(f(3), f(0)))
	assert.Nil(t, Percent(nil, f(8)))
	assert.Nil(t, Percent(f(3), nil))

	assert.Equal(t, 3.33, *Ratio(f(10), f(3)))
	assert.Nil(t, Ratio(f(10), f(0)))
	assert.Nil(t, Ratio(nil, f(3)))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, 1.24, Round2(1.235001))
	assert.Equal(t, -2.5, Round2(-2.5))
}
