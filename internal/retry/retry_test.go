package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: 2 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(5), IsRetryable, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsOnClassifierRejection(t *testing.T) {
	notFound := errors.New("not found")
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func(err error) bool {
		return !errors.Is(err, notFound)
	}, func(ctx context.Context) error {
		attempts++
		return notFound
	})
	if !errors.Is(err, notFound) {
		t.Errorf("Do() error = %v, want %v", err, notFound)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoPermanentUnwraps(t *testing.T) {
	base := errors.New("bad request")
	attempts := 0
	err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return Permanent(base)
	})
	if err != base {
		t.Errorf("Do() error = %v, want the unwrapped error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoMaxRetriesExceeded(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(2), IsRetryable, func(ctx context.Context) error {
		attempts++
		return errors.New("timeout")
	})
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("Do() error = %v, want max retries exceeded", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoNoneReturnsBareError(t *testing.T) {
	base := errors.New("refused")
	err := Do(context.Background(), None(), nil, func(ctx context.Context) error {
		return base
	})
	if err != base {
		t.Errorf("Do() error = %v, want %v", err, base)
	}
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 5, InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}

	attempts := 0
	err := Do(ctx, cfg, IsRetryable, func(ctx context.Context) error {
		attempts++
		cancel()
		return errors.New("temporary")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"invalid url", ErrInvalidURL, false},
		{"permanent", Permanent(errors.New("x")), false},
		{"generic", errors.New("generic"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 15*time.Second {
		t.Errorf("MaxBackoff = %v, want 15s", cfg.MaxBackoff)
	}
}
