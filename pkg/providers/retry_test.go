package providers

import (
	"math"
	"testing"
	"time"
)

func TestRetrySchedule(t *testing.T) {
	tests := []struct {
		name       string
		base       time.Duration
		maxRetries int
		want       []time.Duration
	}{
		{
			name:       "doubles up to the retry count",
			base:       time.Second,
			maxRetries: 3,
			want:       []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second},
		},
		{
			name:       "zero retries still doubles once",
			base:       time.Second,
			maxRetries: 0,
			want:       []time.Duration{time.Second, 2 * time.Second, 2 * time.Second},
		},
		{
			name:       "large retry count stops doubling",
			base:       time.Second,
			maxRetries: 34,
			want:       []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := RetrySchedule(tt.base, tt.maxRetries)
			for i, want := range tt.want {
				if got := b.NextBackOff(); got != want {
					t.Errorf("delay %d = %s, want %s", i, got, want)
				}
			}
		})
	}
}

func TestRetrySchedule_NeverNegative(t *testing.T) {
	for _, n := range []int{17, 34, 63, 64, 1000} {
		b := RetrySchedule(time.Second, n)
		if b.MaxInterval != time.Second<<maxRetryDoublings {
			t.Errorf("maxRetries=%d: MaxInterval = %s, want %s", n, b.MaxInterval, time.Second<<maxRetryDoublings)
		}

		prev := time.Duration(0)
		for i := 0; i < 40; i++ {
			delay := b.NextBackOff()
			if delay < prev {
				t.Fatalf("maxRetries=%d: delay %d shrank from %s to %s", n, i, prev, delay)
			}
			prev = delay
		}
	}

	if got := RetrySchedule(time.Duration(math.MaxInt64/4), 10).MaxInterval; got != math.MaxInt64 {
		t.Errorf("expected a saturated ceiling for a huge base, got %s", got)
	}
}
