package goTokens

import "errors"

var (
	// ErrTokenInvalid is an exported constant or variable used by the token lifecycle engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrQuotaExceeded is an exported constant or variable used by the token lifecycle engine.
	ErrQuotaExceeded = errors.New("refresh token quota exceeded")
	// ErrStoreUnavailable is an exported constant or variable used by the token lifecycle engine.
	ErrStoreUnavailable = errors.New("revocation store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the token lifecycle engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrReconcilerRunning is an exported constant or variable used by the token lifecycle engine.
	ErrReconcilerRunning = errors.New("expiry reconciler already running")
)
