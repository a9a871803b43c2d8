package history

import (
	"testing"
	"time"
)

func stampsAt(offsets ...time.Duration) []time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stamps := make([]time.Time, len(offsets))
	for i, off := range offsets {
		stamps[i] = now.Add(-off)
	}
	return stamps
}

func TestNearest(t *testing.T) {
	h := time.Hour

	tests := []struct {
		name    string
		offsets []time.Duration
		target  time.Duration
		want    int
	}{
		{"four hour target picks three hour snapshot", []time.Duration{0, 1 * h, 3 * h, 10 * h}, 4 * h, 2},
		{"tie resolves to smaller index", []time.Duration{0, 1 * h, 3 * h, 10 * h}, 2 * h, 1},
		{"target beyond oldest picks last", []time.Duration{0, 1 * h, 3 * h, 10 * h}, 48 * h, 3},
		{"zero target picks newest comparable", []time.Duration{0, 1 * h, 3 * h}, 0, 1},
		{"two entries", []time.Duration{0, 5 * h}, 1 * h, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Nearest(stampsAt(tt.offsets...), tt.target)
			if got != tt.want {
				t.Errorf("Nearest(%v, %v) = %d, want %d", tt.offsets, tt.target, got, tt.want)
			}
		})
	}
}

func TestNearest_NoHistory(t *testing.T) {
	if got := Nearest(nil, time.Hour); got != 0 {
		t.Errorf("Nearest(nil) = %d, want 0", got)
	}
	if got := Nearest(stampsAt(0), time.Hour); got != 0 {
		t.Errorf("Nearest(single) = %d, want 0", got)
	}
}

func TestNearest_DoesNotMutate(t *testing.T) {
	stamps := stampsAt(0, time.Hour, 3*time.Hour)
	before := make([]time.Time, len(stamps))
	copy(before, stamps)

	Nearest(stamps, 2*time.Hour)

	for i := range stamps {
		if !stamps[i].Equal(before[i]) {
			t.Fatalf("input mutated at index %d", i)
		}
	}
}
