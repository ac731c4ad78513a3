package connection

import (
	"testing"
	"time"
)

func TestPolicy_Decide(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name      string
		attempt   int
		code      int
		wantRetry bool
	}{
		{name: "first abnormal close", attempt: 0, code: 1006, wantRetry: true},
		{name: "second abnormal close", attempt: 1, code: 1006, wantRetry: true},
		{name: "last allowed retry", attempt: 2, code: 1011, wantRetry: true},
		{name: "going away is abnormal", attempt: 0, code: 1001, wantRetry: true},
		{name: "attempts exhausted", attempt: 3, code: 1006, wantRetry: false},
		{name: "beyond bound", attempt: 7, code: 1006, wantRetry: false},
		{name: "clean close first attempt", attempt: 0, code: 1000, wantRetry: false},
		{name: "clean close exhausted", attempt: 3, code: 1000, wantRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Decide(tt.attempt, tt.code)
			if got.Retry != tt.wantRetry {
				t.Fatalf("Decide(%d, %d).Retry = %v, want %v", tt.attempt, tt.code, got.Retry, tt.wantRetry)
			}
			if tt.wantRetry && got.Delay != 3*time.Second {
				t.Errorf("Delay = %v, want 3s", got.Delay)
			}
			if !tt.wantRetry && got.Delay != 0 {
				t.Errorf("Delay = %v, want 0 on give up", got.Delay)
			}
		})
	}
}

func TestPolicy_RetryBelowBoundForAllAbnormalCodes(t *testing.T) {
	p := DefaultPolicy()
	codes := []int{1001, 1002, 1003, 1006, 1008, 1011, 1012, 1013, 4000}

	for attempt := 0; attempt < DefaultMaxAttempts; attempt++ {
		for _, code := range codes {
			got := p.Decide(attempt, code)
			if !got.Retry || got.Delay != DefaultReconnectInterval {
				t.Errorf("Decide(%d, %d) = %+v, want retry after %v", attempt, code, got, DefaultReconnectInterval)
			}
		}
	}
}

func TestPolicy_Deterministic(t *testing.T) {
	p := Policy{MaxAttempts: 5, Interval: 250 * time.Millisecond}
	first := p.Decide(2, 1006)
	for i := 0; i < 10; i++ {
		if got := p.Decide(2, 1006); got != first {
			t.Fatalf("Decide not deterministic: %+v vs %+v", got, first)
		}
	}
}
