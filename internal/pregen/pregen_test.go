package pregen

import (
	"context"
	"encoding/json"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Pregen_PutAndGet(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	plan := json.RawMessage(`{"focus":"visual design fundamentals"}`)
	if err := s.Put(ctx, 42, plan); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("want plan for score 42")
	}
	if string(got) != string(plan) {
		t.Errorf("plan round trip: want %s, got %s", plan, got)
	}
}

func Test_Pregen_GetMissingScore(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, ok, err := s.Get(context.Background(), 77)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("want ok=false for missing score")
	}
}

func Test_Pregen_PutReplaces(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, 10, json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatalf("put v1: %v", err)
	}
	if err := s.Put(ctx, 10, json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("put v2: %v", err)
	}

	got, ok, err := s.Get(ctx, 10)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("want replaced plan, got %s", got)
	}
}

func Test_Pregen_ScoreBounds(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, score := range []int{-1, 101, 500} {
		if err := s.Put(ctx, score, json.RawMessage(`{}`)); err == nil {
			t.Errorf("put score %d: want error", score)
		}
		if _, _, err := s.Get(ctx, score); err == nil {
			t.Errorf("get score %d: want error", score)
		}
	}

	// Boundary scores are valid.
	for _, score := range []int{0, 100} {
		if err := s.Put(ctx, score, json.RawMessage(`{}`)); err != nil {
			t.Errorf("put score %d: %v", score, err)
		}
	}
}

func Test_Pregen_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if err := s.Put(context.Background(), 50, json.RawMessage(`{not json`)); err == nil {
		t.Error("want error for invalid JSON plan")
	}
}

func Test_Pregen_Stats(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats empty: %v", err)
	}
	if st.Plans != 0 || st.Coverage != 0 {
		t.Errorf("empty store: want 0 plans / 0 coverage, got %+v", st)
	}
	if !st.UpdatedAt.IsZero() {
		t.Errorf("empty store: want zero UpdatedAt, got %v", st.UpdatedAt)
	}

	for score := 0; score <= 100; score++ {
		if err := s.Put(ctx, score, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("put score %d: %v", score, err)
		}
	}

	st, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats full: %v", err)
	}
	if st.Plans != 101 {
		t.Errorf("want 101 plans, got %d", st.Plans)
	}
	if st.Coverage != 1.0 {
		t.Errorf("want full coverage, got %v", st.Coverage)
	}
	if st.UpdatedAt.IsZero() {
		t.Error("want non-zero UpdatedAt")
	}
}
