package goTokens

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionIssueAndVerify(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	ctx := context.Background()
	payload := TokenPayload{
		SubjectID:  "user-1",
		Role:       "admin",
		Attributes: map[string]string{"tier": "gold"},
	}

	tokenStr, err := engine.IssueSessionToken(ctx, payload)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	got, err := engine.VerifySessionToken(ctx, tokenStr)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if got.SubjectID != "user-1" {
		t.Fatalf("expected subject user-1, got %s", got.SubjectID)
	}
	if got.Role != "admin" {
		t.Fatalf("expected role admin, got %s", got.Role)
	}
	if got.Attributes["tier"] != "gold" {
		t.Fatalf("expected attribute tier=gold, got %v", got.Attributes)
	}
}

func TestSessionVerifyRejectsGarbage(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	for _, tokenStr := range []string{"", "not-a-token", "a.b.c"} {
		_, err := engine.VerifySessionToken(context.Background(), tokenStr)
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", tokenStr, err)
		}
	}
}

func TestSessionVerifyRejectsRefreshToken(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	ctx := context.Background()
	refreshToken, _, err := engine.IssueRefreshToken(ctx, TokenPayload{SubjectID: "user-1"})
	if err != nil {
		t.Fatalf("issue refresh failed: %v", err)
	}

	_, err = engine.VerifySessionToken(ctx, refreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for refresh token on session path, got %v", err)
	}
}

func TestSessionRevokeBlocksVerify(t *testing.T) {
	engine, _, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	ctx := context.Background()
	tokenStr, err := engine.IssueSessionToken(ctx, TokenPayload{SubjectID: "user-1"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := engine.VerifySessionToken(ctx, tokenStr); err != nil {
		t.Fatalf("verify before revoke failed: %v", err)
	}

	if err := engine.RevokeSession(ctx, tokenStr); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	_, err = engine.VerifySessionToken(ctx, tokenStr)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after revoke, got %v", err)
	}

	// Second revoke is idempotent.
	if err := engine.RevokeSession(ctx, tokenStr); err != nil {
		t.Fatalf("second revoke failed: %v", err)
	}
}

func TestSessionRevokeBlacklistExpiresWithToken(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.Token.SessionTTL = time.Minute

	engine, mr, _, done := newTokenEngine(t, cfg)
	defer done()

	ctx := context.Background()
	tokenStr, err := engine.IssueSessionToken(ctx, TokenPayload{SubjectID: "user-1"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := engine.RevokeSession(ctx, tokenStr); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	// The blacklist entry must not outlive the token's own expiry.
	mr.FastForward(2 * time.Minute)

	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected blacklist entry to expire, remaining keys %v", keys)
	}
}

func TestSessionVerifyFailsClosedOnStoreOutage(t *testing.T) {
	engine, mr, _, done := newTokenEngine(t, tokenTestConfig())
	defer done()

	ctx := context.Background()
	tokenStr, err := engine.IssueSessionToken(ctx, TokenPayload{SubjectID: "user-1"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	mr.Close()

	_, err = engine.VerifySessionToken(ctx, tokenStr)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrTokenInvalid) {
		t.Fatal("store outage must not be reported as an invalid token")
	}
}

func TestSessionMetricsCount(t *testing.T) {
	cfg := tokenTestConfig()
	cfg.Metrics.Enabled = true

	engine, _, _, done := newTokenEngine(t, cfg)
	defer done()

	ctx := context.Background()
	tokenStr, err := engine.IssueSessionToken(ctx, TokenPayload{SubjectID: "user-1"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := engine.VerifySessionToken(ctx, tokenStr); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := engine.VerifySessionToken(ctx, "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricSessionIssued] != 1 {
		t.Fatalf("expected 1 session issued, got %d", snap.Counters[MetricSessionIssued])
	}
	if snap.Counters[MetricSessionVerified] != 1 {
		t.Fatalf("expected 1 session verified, got %d", snap.Counters[MetricSessionVerified])
	}
	if snap.Counters[MetricSessionRejected] != 1 {
		t.Fatalf("expected 1 session rejected, got %d", snap.Counters[MetricSessionRejected])
	}
}
