package settings

import (
	"context"
	"testing"

	"github.com/chkdhq/chkd/internal/chkderr"
	"github.com/chkdhq/chkd/internal/store/storetest"
)

func TestGetReturnsFalseForMissingKey(t *testing.T) {
	s := New(storetest.Open(t))
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("want ok=false for missing key")
	}
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s := New(storetest.Open(t))
	ctx := context.Background()
	if err := s.Set(ctx, "merge.autoMerge", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := s.Get(ctx, "merge.autoMerge")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "true" {
		t.Fatalf("want (true, true), got (%q, %v)", value, ok)
	}
}

func TestSetOverwritesExistingKey(t *testing.T) {
	s := New(storetest.Open(t))
	ctx := context.Background()
	if err := s.Set(ctx, "k", "first"); err != nil {
		t.Fatalf("set first: %v", err)
	}
	if err := s.Set(ctx, "k", "second"); err != nil {
		t.Fatalf("set second: %v", err)
	}
	value, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "second" {
		t.Fatalf("want second, got %q", value)
	}
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("want 1 row after overwrite, got %d", len(all))
	}
}

func TestSetRejectsEmptyKey(t *testing.T) {
	s := New(storetest.Open(t))
	err := s.Set(context.Background(), "", "x")
	if !chkderr.Is(err, chkderr.Validation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New(storetest.Open(t))
	ctx := context.Background()
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	_, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("want key gone after delete")
	}
}

func TestAllOrdersByKey(t *testing.T) {
	s := New(storetest.Open(t))
	ctx := context.Background()
	for _, k := range []string{"zeta", "alpha", "mid"} {
		if err := s.Set(ctx, k, k); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 || all[0].Key != "alpha" || all[1].Key != "mid" || all[2].Key != "zeta" {
		t.Fatalf("want alphabetical order, got %+v", all)
	}
}
