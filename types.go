package goTokens

import "github.com/MrEthical07/goTokens/token"

// TokenPayload is the caller-supplied content a token transports: the
// subject identifier plus opaque role and attribute data. The engine
// carries it verbatim and never interprets it.
type TokenPayload = token.Payload

// TokenPair defines a public type used by goTokens APIs.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	SessionToken   string
	RefreshToken   string
	RefreshTokenID string
}
