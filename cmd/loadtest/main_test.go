package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	samples := []float64{
		float64(10 * time.Millisecond),
		float64(20 * time.Millisecond),
		float64(30 * time.Millisecond),
		float64(40 * time.Millisecond),
	}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 20 * time.Millisecond},
		{90, 40 * time.Millisecond},
		{99, 40 * time.Millisecond},
		{25, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentile(samples, tt.p), "p%v", tt.p)
	}
}
