package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, "bench: n=0 errors=3", summarize(nil, 3))

	durations := []time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond}
	got := summarize(durations, 0)
	assert.Equal(t, "bench: n=3 errors=0 avg_ms=2.00 p50_ms=2.00 p95_ms=2.00", got)
}
