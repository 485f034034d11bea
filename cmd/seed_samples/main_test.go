package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalHours(t *testing.T) {
	cases := []struct {
		interval string
		hours    float64
	}{
		{"1s", 1.0 / 3600.0},
		{"1m", 1.0 / 60.0},
		{"15m", 0.25},
		{"1h", 1},
		{"4h", 4},
		{"1d", 24},
		{"3d", 72},
		{"1w", 168},
		{"1M", 720},
	}
	for _, tc := range cases {
		t.Run(tc.interval, func(t *testing.T) {
			got, err := intervalHours(tc.interval)
			require.NoError(t, err)
			assert.InDelta(t, tc.hours, got, 1e-12)
		})
	}
}

func TestIntervalHours_Invalid(t *testing.T) {
	for _, interval := range []string{"", "h", "1x", "0h", "-1h", "1.5h", "d1"} {
		t.Run(interval, func(t *testing.T) {
			_, err := intervalHours(interval)
			assert.Error(t, err)
		})
	}
}
