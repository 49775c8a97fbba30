package goTokens

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goTokens/store"
	"github.com/MrEthical07/goTokens/token"
)

const minSwapTTL = time.Second

// IssueRefreshToken mints a refresh token and registers it against the
// subject's quota in one atomic store operation. When the subject already
// holds the configured maximum of live tokens, [ErrQuotaExceeded] is
// returned and nothing is mutated.
//
// IssueRefreshToken may return an error when input validation, dependency calls, or security checks fail.
// IssueRefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssueRefreshToken(ctx context.Context, payload TokenPayload) (string, string, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return "", "", ErrEngineNotReady
	}

	tokenStr, tokenID, _, err := e.codec.Mint(token.PurposeRefresh, payload, e.config.Token.RefreshTTL)
	if err != nil {
		return "", "", err
	}

	err = e.store.RegisterRefresh(ctx, payload.SubjectID, tokenID, e.config.Token.RefreshTTL, e.config.Refresh.MaxActivePerSubject)
	if err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			e.metricInc(MetricRefreshQuotaExceeded)
			e.emitAudit(ctx, auditEventRefreshQuotaExceeded, false, payload.SubjectID, tokenID, ErrQuotaExceeded, nil)
			return "", "", ErrQuotaExceeded
		}
		return "", "", e.storeUnavailable(err)
	}

	e.metricInc(MetricRefreshIssued)
	e.emitAudit(ctx, auditEventRefreshIssued, true, payload.SubjectID, tokenID, nil, nil)

	return tokenStr, tokenID, nil
}

// RotateRefreshToken exchanges a live refresh token for a new one carrying
// the same payload and the same absolute expiry. The old token becomes
// unusable in the same atomic store operation that registers the new one, so
// concurrent rotations of the same token have exactly one winner. A token
// whose record is gone (already rotated, revoked, or expired) reports
// [ErrTokenInvalid] and mutates nothing.
//
// RotateRefreshToken may return an error when input validation, dependency calls, or security checks fail.
// RotateRefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RotateRefreshToken(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return "", "", ErrEngineNotReady
	}

	claims, err := e.codec.Verify(token.PurposeRefresh, refreshToken)
	if err != nil {
		return "", "", ErrTokenInvalid
	}

	expiresAt := claims.ExpiresAt.Time
	remaining := time.Until(expiresAt)
	if remaining < minSwapTTL {
		// Verification leeway can admit a token at the edge of expiry.
		remaining = minSwapTTL
		expiresAt = time.Now().Add(remaining)
	}

	newToken, newID, err := e.codec.MintUntil(token.PurposeRefresh, claims.Payload(), expiresAt)
	if err != nil {
		return "", "", err
	}

	err = e.store.SwapRefresh(ctx, claims.Subject, claims.ID, newID, remaining)
	if err != nil {
		if errors.Is(err, store.ErrRecordMissing) {
			e.metricInc(MetricRefreshReplayDetected)
			e.emitAudit(ctx, auditEventRefreshReplayDetected, false, claims.Subject, claims.ID, ErrTokenInvalid, nil)
			return "", "", ErrTokenInvalid
		}
		return "", "", e.storeUnavailable(err)
	}

	e.metricInc(MetricRefreshRotated)
	e.emitAudit(ctx, auditEventRefreshRotated, true, claims.Subject, newID, nil, func() map[string]string {
		return map[string]string{
			"rotated_from": claims.ID,
		}
	})

	return newToken, newID, nil
}

// RevokeRefresh deletes a refresh token's record and index entry, freeing
// its quota slot. Idempotent.
//
// RevokeRefresh may return an error when input validation, dependency calls, or security checks fail.
// RevokeRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeRefresh(ctx context.Context, refreshToken string) error {
	if e == nil || e.codec == nil || e.store == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.Verify(token.PurposeRefresh, refreshToken)
	if err != nil {
		return ErrTokenInvalid
	}

	if err := e.store.RevokeRefresh(ctx, claims.Subject, claims.ID); err != nil {
		return e.storeUnavailable(err)
	}

	e.metricInc(MetricRefreshRevoked)
	e.emitAudit(ctx, auditEventRefreshRevoked, true, claims.Subject, claims.ID, nil, nil)

	return nil
}

// RevokeAllRefresh atomically deletes every refresh record for a subject
// and clears the index. Returns the number of records removed.
//
// RevokeAllRefresh may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeAllRefresh(ctx context.Context, subjectID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.store.PurgeSubject(ctx, subjectID)
	if err != nil {
		return 0, e.storeUnavailable(err)
	}

	e.metricInc(MetricRefreshRevokedAll)
	e.emitAudit(ctx, auditEventRefreshRevokedAll, true, subjectID, "", nil, nil)

	return removed, nil
}

// ActiveRefreshTokens returns the subject's live refresh token IDs.
//
// ActiveRefreshTokens may return an error when input validation, dependency calls, or security checks fail.
// ActiveRefreshTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ActiveRefreshTokens(ctx context.Context, subjectID string) ([]string, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	ids, err := e.store.ActiveTokenIDs(ctx, subjectID)
	if err != nil {
		return nil, e.storeUnavailable(err)
	}
	return ids, nil
}

// IssuePair issues a session token and a registered refresh token for the
// same payload. This is the login-time flow.
//
// IssuePair may return an error when input validation, dependency calls, or security checks fail.
// IssuePair does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) IssuePair(ctx context.Context, payload TokenPayload) (*TokenPair, error) {
	refreshToken, refreshID, err := e.IssueRefreshToken(ctx, payload)
	if err != nil {
		return nil, err
	}

	sessionToken, err := e.IssueSessionToken(ctx, payload)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		SessionToken:   sessionToken,
		RefreshToken:   refreshToken,
		RefreshTokenID: refreshID,
	}, nil
}

// RefreshPair rotates a refresh token and mints a fresh session token from
// the payload the refresh token carries. This is the token-refresh flow: no
// user-store round trip is needed.
//
// RefreshPair may return an error when input validation, dependency calls, or security checks fail.
// RefreshPair does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RefreshPair(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	newRefresh, newID, err := e.RotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	claims, err := e.codec.Verify(token.PurposeRefresh, newRefresh)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	sessionToken, err := e.IssueSessionToken(ctx, claims.Payload())
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		SessionToken:   sessionToken,
		RefreshToken:   newRefresh,
		RefreshTokenID: newID,
	}, nil
}
