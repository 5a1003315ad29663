package utils

import (
	"context"
	"testing"
	"time"
)

func TestTruncateForLog(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"exact limit untouched", "hello", 5, "hello"},
		{"long string truncated", "hello world", 5, "hello..."},
		{"zero limit", "hello", 0, ""},
		{"whitespace trimmed", "  hello  ", 10, "hello"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateForLog(tc.in, tc.limit); got != tc.want {
				t.Fatalf("TruncateForLog(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}

func TestRandomBetween(t *testing.T) {
	min := 10 * time.Millisecond
	max := 50 * time.Millisecond

	for i := 0; i < 100; i++ {
		d := RandomBetween(min, max)
		if d < min || d > max {
			t.Fatalf("RandomBetween returned %v, want value in [%v, %v]", d, min, max)
		}
	}

	if d := RandomBetween(max, min); d != max {
		t.Fatalf("expected min to be returned when max <= min, got %v", d)
	}
}

func TestWaitForCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); err == nil {
		t.Fatal("expected context error for cancelled wait")
	}
}

func TestWaitForZeroDuration(t *testing.T) {
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
