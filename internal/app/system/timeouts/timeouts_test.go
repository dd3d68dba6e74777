package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure_KeepsZeroTiers(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: time.Second, Long: time.Minute})

	got := Current()
	want := Config{Ping: DefaultPing, Short: time.Second, Medium: DefaultMedium, Long: time.Minute}
	if got != want {
		t.Fatalf("Current() = %+v, want %+v", got, want)
	}
	if Short() != time.Second {
		t.Errorf("Short() = %v", Short())
	}

	Reset()
	if Current() != defaults() {
		t.Errorf("Reset did not restore defaults: %+v", Current())
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not expire")
	}
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("err = %v", ctx.Err())
	}
}
