package backoff

import (
	"math"
	"testing"
	"time"
)

func TestNextDelayIsLinearAndCapped(t *testing.T) {
	p := Default()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: -3, want: 5 * time.Second},
		{attempt: 0, want: 5 * time.Second},
		{attempt: 1, want: 10 * time.Second},
		{attempt: 4, want: 25 * time.Second},
		{attempt: 5, want: 30 * time.Second},
		{attempt: 100, want: 30 * time.Second},
		{attempt: math.MaxInt32, want: 30 * time.Second},
	}

	for _, tc := range tests {
		if got := p.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("NextDelay(%d): expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestNextDelayIsMonotonicDeterministicAndBounded(t *testing.T) {
	policies := []Policy{
		Default(),
		{Base: time.Second, Max: 7 * time.Second},
		{Base: 3 * time.Second, Max: time.Second},
		{Base: 250 * time.Millisecond, Max: time.Minute, MaxAttempts: 0},
	}

	for _, p := range policies {
		limit := p.Max
		if limit < p.Base {
			limit = p.Base
		}
		for a := 0; a < 500; a++ {
			cur, next := p.NextDelay(a), p.NextDelay(a+1)
			if cur > next {
				t.Fatalf("%+v: NextDelay(%d)=%v > NextDelay(%d)=%v", p, a, cur, a+1, next)
			}
			if next > limit {
				t.Fatalf("%+v: NextDelay(%d)=%v exceeds cap %v", p, a+1, next, limit)
			}
			if again := p.NextDelay(a); again != cur {
				t.Fatalf("%+v: NextDelay(%d) not deterministic: %v vs %v", p, a, cur, again)
			}
		}
	}
}

func TestShouldRetry(t *testing.T) {
	bounded := Policy{Base: time.Second, Max: time.Second, MaxAttempts: 3}
	for a := 0; a < 3; a++ {
		if !bounded.ShouldRetry(a) {
			t.Fatalf("expected retry allowed at attempt %d", a)
		}
	}
	if bounded.ShouldRetry(3) {
		t.Fatalf("expected retries exhausted at attempt 3")
	}

	unbounded := Policy{Base: time.Second, Max: time.Second}
	if !unbounded.Unbounded() || !unbounded.ShouldRetry(1_000_000) {
		t.Fatalf("expected unbounded policy to always retry")
	}
}
