package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func fixedClock(l *Limiter, t0 time.Time) *time.Time {
	now := t0
	l.now = func() time.Time { return now }
	return &now
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	l := New(3, 3*time.Second)
	now := fixedClock(l, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatalf("attempt %d refused", i+1)
		}
	}
	if l.Allow("k") {
		t.Fatal("fourth attempt allowed")
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
	if got := l.Remaining("other"); got != 3 {
		t.Errorf("Remaining(other) = %d, want 3", got)
	}

	*now = now.Add(time.Second)
	if !l.Allow("k") {
		t.Error("attempt after one refill interval refused")
	}
}

func TestLimiter_ResetAndSweep(t *testing.T) {
	l := New(1, time.Minute)
	now := fixedClock(l, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("second attempt allowed")
	}
	l.Reset("a")
	if !l.Allow("a") {
		t.Fatal("attempt after Reset refused")
	}

	*now = now.Add(2 * time.Minute)
	l.Allow("b")
	if l.Len() != 1 {
		t.Errorf("Len = %d after sweep, want 1", l.Len())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.2 "}, "10.0.0.1:1234", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_Check(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	r := httptest.NewRequest("POST", "/login", nil)

	for i := 0; i < 2; i++ {
		if ok, _ := ll.Check(r, "Ada@Example.com"); !ok {
			t.Fatalf("attempt %d refused", i+1)
		}
	}
	ok, msg := ll.Check(r, " ada@example.com ")
	if ok || msg != TooManyForAccount {
		t.Fatalf("third attempt: ok=%v msg=%q", ok, msg)
	}

	ll.ResetEmail("ADA@example.com")
	if ok, _ := ll.Check(r, "ada@example.com"); !ok {
		t.Error("attempt after ResetEmail refused")
	}
}

func TestLoginLimiter_IPLimit(t *testing.T) {
	ll := NewLoginLimiterWithConfig(1, time.Minute, 10, time.Minute)
	r := httptest.NewRequest("POST", "/login", nil)

	ll.Check(r, "")
	if ok, msg := ll.Check(r, ""); ok || msg != TooManyFromIP {
		t.Errorf("second attempt from same IP: ok=%v msg=%q", ok, msg)
	}
}
