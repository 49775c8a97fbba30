package token

import (
	"bytes"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalid is returned for every verification failure: bad signature,
// malformed token, expired token, or purpose mismatch. Callers must not be
// able to distinguish the cases.
var ErrInvalid = errors.New("invalid token")

// Purpose defines a public type used by goTokens APIs.
//
// Purpose instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Purpose string

const (
	// PurposeSession is an exported constant or variable used by the token lifecycle engine.
	PurposeSession Purpose = "session"
	// PurposeRefresh is an exported constant or variable used by the token lifecycle engine.
	PurposeRefresh Purpose = "refresh"
)

const minSecretLen = 32

// Config defines a public type used by goTokens APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SessionSecret []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

// Manager signs and verifies tokens with HS256. Each purpose has its own
// secret, so a token minted for one purpose can never verify for another.
// Manager is stateless and safe for concurrent use.
type Manager struct {
	config Config
}

// Payload is the caller-supplied content a token transports. The codec
// carries it opaquely and never interprets Role or Attributes.
type Payload struct {
	SubjectID  string
	Role       string
	Attributes map[string]string
}

// Claims defines a public type used by goTokens APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	Purpose    Purpose           `json:"pur"`
	Role       string            `json:"role,omitempty"`
	Attributes map[string]string `json:"attr,omitempty"`
	jwt.RegisteredClaims
}

// Payload rebuilds the caller-supplied payload from verified claims.
func (c *Claims) Payload() Payload {
	return Payload{
		SubjectID:  c.Subject,
		Role:       c.Role,
		Attributes: c.Attributes,
	}
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.SessionSecret) < minSecretLen {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if len(cfg.RefreshSecret) < minSecretLen {
		return nil, errors.New("refresh secret must be at least 32 bytes")
	}
	if bytes.Equal(cfg.SessionSecret, cfg.RefreshSecret) {
		return nil, errors.New("session and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Mint creates a signed token for the given purpose expiring after ttl.
// It returns the compact token, its unique token ID (the jti claim), and
// the absolute expiry instant.
func (m *Manager) Mint(p Purpose, payload Payload, ttl time.Duration) (string, string, time.Time, error) {
	if ttl <= 0 {
		return "", "", time.Time{}, errors.New("ttl must be > 0")
	}
	expiresAt := time.Now().Add(ttl)
	tokenStr, tokenID, err := m.mintUntil(p, payload, expiresAt)
	return tokenStr, tokenID, expiresAt, err
}

// MintUntil creates a signed token for the given purpose with a fixed
// absolute expiry. Rotation uses it to preserve the original lifetime.
func (m *Manager) MintUntil(p Purpose, payload Payload, expiresAt time.Time) (string, string, error) {
	if !expiresAt.After(time.Now()) {
		return "", "", errors.New("expiresAt must be in the future")
	}
	return m.mintUntil(p, payload, expiresAt)
}

func (m *Manager) mintUntil(p Purpose, payload Payload, expiresAt time.Time) (string, string, error) {
	secret, err := m.secretFor(p)
	if err != nil {
		return "", "", err
	}
	if payload.SubjectID == "" {
		return "", "", errors.New("payload subject id required")
	}

	tokenID := uuid.NewString()
	claims := Claims{
		Purpose:    p,
		Role:       payload.Role,
		Attributes: payload.Attributes,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   payload.SubjectID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", err
	}
	return tokenStr, tokenID, nil
}

// Verify checks signature, expiry, and purpose of tokenStr against the
// secret for p. Any failure is reported as [ErrInvalid].
func (m *Manager) Verify(p Purpose, tokenStr string) (*Claims, error) {
	secret, err := m.secretFor(p)
	if err != nil {
		return nil, ErrInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Purpose != p {
		return nil, ErrInvalid
	}
	if claims.ID == "" || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalid
	}

	return claims, nil
}

func (m *Manager) secretFor(p Purpose) ([]byte, error) {
	switch p {
	case PurposeSession:
		return m.config.SessionSecret, nil
	case PurposeRefresh:
		return m.config.RefreshSecret, nil
	default:
		return nil, errors.New("unknown token purpose")
	}
}
