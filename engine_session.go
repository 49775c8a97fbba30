package goTokens

import (
	"context"
	"time"

	"github.com/MrEthical07/goTokens/token"
)

const minBlacklistTTL = time.Second

// IssueSessionToken describes the issuesessiontoken operation and its observable behavior.
//
// IssueSessionToken may return an error when input validation, dependency calls, or security checks fail.
// IssueSessionToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueSessionToken(ctx context.Context, payload TokenPayload) (string, error) {
	if e == nil || e.codec == nil {
		return "", ErrEngineNotReady
	}

	tokenStr, tokenID, _, err := e.codec.Mint(token.PurposeSession, payload, e.config.Token.SessionTTL)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, payload.SubjectID, tokenID, nil, nil)

	return tokenStr, nil
}

// VerifySessionToken checks signature and expiry, then consults the
// blacklist. A blacklisted token reports [ErrTokenInvalid]; a store outage
// reports [ErrStoreUnavailable] and the token is NOT accepted. The two are
// never conflated.
//
// VerifySessionToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifySessionToken(ctx context.Context, tokenStr string) (*TokenPayload, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}()
	}

	claims, err := e.codec.Verify(token.PurposeSession, tokenStr)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return nil, ErrTokenInvalid
	}

	blacklisted, err := e.store.SessionBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, e.storeUnavailable(err)
	}
	if blacklisted {
		e.metricInc(MetricSessionRejected)
		return nil, ErrTokenInvalid
	}

	e.metricInc(MetricSessionVerified)
	payload := claims.Payload()
	return &payload, nil
}

// RevokeSession blacklists a session token for its remaining lifetime.
// Revoking an already-expired token is a no-op; revoking twice is
// idempotent.
//
// RevokeSession may return an error when input validation, dependency calls, or security checks fail.
// RevokeSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeSession(ctx context.Context, tokenStr string) error {
	if e == nil || e.codec == nil || e.store == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.Verify(token.PurposeSession, tokenStr)
	if err != nil {
		return ErrTokenInvalid
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	if remaining < minBlacklistTTL {
		remaining = minBlacklistTTL
	}

	if err := e.store.BlacklistSession(ctx, claims.ID, remaining); err != nil {
		return e.storeUnavailable(err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, claims.Subject, claims.ID, nil, nil)

	return nil
}
