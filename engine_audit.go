package goTokens

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSessionIssued            = "session_issued"
	auditEventSessionRevoked           = "session_revoked"
	auditEventRefreshIssued            = "refresh_issued"
	auditEventRefreshQuotaExceeded     = "refresh_quota_exceeded"
	auditEventRefreshRotated           = "refresh_rotated"
	auditEventRefreshReplayDetected    = "refresh_replay_detected"
	auditEventRefreshRevoked           = "refresh_revoked"
	auditEventRefreshRevokedAll        = "refresh_revoked_all"
	auditEventRefreshExpiredReconciled = "refresh_expired_reconciled"
)

// AuditErrorCode defines a public type used by goTokens APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidToken     AuditErrorCode = "invalid_token"
	auditErrQuotaExceeded    AuditErrorCode = "quota_exceeded"
	auditErrStoreUnavailable AuditErrorCode = "store_unavailable"
	auditErrNotReady         AuditErrorCode = "engine_not_ready"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrQuotaExceeded):
		return auditErrQuotaExceeded
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrEngineNotReady):
		return auditErrNotReady
	default:
		return auditErrInternal
	}
}
