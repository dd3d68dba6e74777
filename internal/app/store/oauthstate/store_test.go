package oauthstate

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore/memstore"
)

func TestStore_ConsumeIsOneTime(t *testing.T) {
	ctx := context.Background()
	s := New(memstore.New())

	if err := s.Save(ctx, "st-1", "/notifications", 0); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ret, ok, err := s.Consume(ctx, "st-1")
	if err != nil || !ok || ret != "/notifications" {
		t.Fatalf("Consume = %q, %v, %v", ret, ok, err)
	}
	if _, ok, _ := s.Consume(ctx, "st-1"); ok {
		t.Error("state accepted twice")
	}
	if _, ok, _ := s.Consume(ctx, ""); ok {
		t.Error("empty state accepted")
	}
}

func TestStore_ExpiredStates(t *testing.T) {
	ctx := context.Background()
	s := New(memstore.New())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.Save(ctx, "old", "", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "older", "", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "fresh", "", time.Hour); err != nil {
		t.Fatal(err)
	}

	now = now.Add(5 * time.Minute)

	if _, ok, _ := s.Consume(ctx, "old"); ok {
		t.Error("expired state accepted")
	}
	n, err := s.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, ok, _ := s.Consume(ctx, "fresh"); !ok {
		t.Error("fresh state rejected")
	}
}
