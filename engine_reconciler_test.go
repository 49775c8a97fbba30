package goTokens

import (
	"context"
	"errors"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes. Reconciler
// effects arrive over pub/sub, so assertions on them cannot be immediate.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestReconcilerDeindexesExpiredRecord(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.Metrics.Enabled = true

	engine, mr, rdb, done := newTokenEngine(t, cfg)
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.StartReconciler(ctx); err != nil {
		t.Fatalf("StartReconciler failed: %v", err)
	}

	_, tokenID, err := engine.IssueRefreshToken(ctx, TokenPayload{SubjectID: "user-1"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Let the subscription settle before publishing.
	time.Sleep(100 * time.Millisecond)

	// miniredis does not emit expiry notifications natively, so simulate the
	// record expiring and publish the event the server would have sent.
	recordKey := "tk:rt:user-1:" + tokenID
	mr.Del(recordKey)
	rdb.Publish(ctx, "__keyevent@0__:expired", recordKey)

	waitFor(t, 2*time.Second, func() bool {
		count, err := engine.store.ActiveTokenCount(ctx, "user-1")
		return err == nil && count == 0
	})

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricExpiryReconciled] != 1 {
		t.Fatalf("expected 1 reconciled expiry, got %d", snap.Counters[MetricExpiryReconciled])
	}
}

func TestReconcilerHandlesSubjectWithColons(t *testing.T) {
	engine, mr, rdb, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.StartReconciler(ctx); err != nil {
		t.Fatalf("StartReconciler failed: %v", err)
	}

	const subject = "tenant:eu:user-1"
	_, tokenID, err := engine.IssueRefreshToken(ctx, TokenPayload{SubjectID: subject})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	recordKey := "tk:rt:" + subject + ":" + tokenID
	mr.Del(recordKey)
	rdb.Publish(ctx, "__keyevent@0__:expired", recordKey)

	waitFor(t, 2*time.Second, func() bool {
		count, err := engine.store.ActiveTokenCount(ctx, subject)
		return err == nil && count == 0
	})
}

func TestReconcilerDropsMalformedKeys(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.Metrics.Enabled = true

	engine, _, rdb, done := newTokenEngine(t, cfg)
	defer done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.StartReconciler(ctx); err != nil {
		t.Fatalf("StartReconciler failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	// In-namespace but with no subject/token separator.
	rdb.Publish(ctx, "__keyevent@0__:expired", "tk:rt:garbage")
	// Outside the record namespace: must be ignored entirely.
	rdb.Publish(ctx, "__keyevent@0__:expired", "other:key")

	waitFor(t, 2*time.Second, func() bool {
		return engine.MetricsSnapshot().Counters[MetricExpiryParseDropped] == 1
	})

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricExpiryParseDropped] != 1 {
		t.Fatalf("expected 1 dropped key, got %d", snap.Counters[MetricExpiryParseDropped])
	}
	if snap.Counters[MetricExpiryReconciled] != 0 {
		t.Fatalf("expected 0 reconciled, got %d", snap.Counters[MetricExpiryReconciled])
	}
}

func TestReconcilerSingleInstance(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	ctx, cancel := context.WithCancel(context.Background())

	if err := engine.StartReconciler(ctx); err != nil {
		t.Fatalf("StartReconciler failed: %v", err)
	}
	if err := engine.StartReconciler(ctx); !errors.Is(err, ErrReconcilerRunning) {
		t.Fatalf("expected ErrReconcilerRunning, got %v", err)
	}

	cancel()

	// After cancellation the slot frees up and a restart is allowed.
	waitFor(t, 2*time.Second, func() bool {
		return !engine.reconcilerRunning.Load()
	})

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	if err := engine.StartReconciler(ctx2); err != nil {
		t.Fatalf("restart after cancel failed: %v", err)
	}
}

func TestStartReconcilerRequiresStore(t *testing.T) {
	var e *Engine
	if err := e.StartReconciler(context.Background()); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
