package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyRecorder(t *testing.T) {
	l := newLatencyRecorder()
	assert.Equal(t, Latency{}, l.Summary())

	for i := 1; i <= 100; i++ {
		l.Record(time.Duration(i) * time.Millisecond)
	}

	s := l.Summary()
	assert.Equal(t, int64(100), s.Count)
	assert.InDelta(t, float64(time.Millisecond), float64(s.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Max), float64(100*time.Microsecond))
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(100*time.Microsecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(s.P95), float64(100*time.Microsecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(s.P99), float64(100*time.Microsecond))
}

func TestLatencyRecorder_Clamps(t *testing.T) {
	l := newLatencyRecorder()
	l.Record(0)
	l.Record(2 * time.Minute)

	s := l.Summary()
	assert.Equal(t, int64(2), s.Count)
	assert.Equal(t, time.Microsecond, s.Min)
	assert.InDelta(t, float64(time.Minute), float64(s.Max), float64(100*time.Millisecond))
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{"list users", "", true},
		{"list users", "list users", true},
		{"list users", "list", false},
		{"list users", "list*", true},
		{"list users", "*users", true},
		{"list users", "*st us*", true},
		{"list users", "*", true},
		{"single user", "list*", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchName(tt.name, tt.filter), "%q vs %q", tt.name, tt.filter)
	}
}
