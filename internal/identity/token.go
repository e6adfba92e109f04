// Package identity issues and verifies the bearer tokens that carry the
// current user id, and keeps the list of signed-out tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// ─────────────────────────────────────────────────────────────────
// Issuer
// ─────────────────────────────────────────────────────────────────

type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewIssuer(secret, issuer string) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Issue signs an HS256 token for userID valid for ttl.
func (i *Issuer) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := i.now()
	claims := gojwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    i.issuer,
		ID:        uuid.NewString(),
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ─────────────────────────────────────────────────────────────────
// Verifier
// ─────────────────────────────────────────────────────────────────

// RevocationChecker reports whether a token id was signed out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Verifier struct {
	secret  []byte
	parser  *gojwt.Parser
	revoked RevocationChecker
}

// NewVerifier checks signature, algorithm, issuer and expiry. revoked may be nil.
func NewVerifier(secret, issuer string, revoked RevocationChecker) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: gojwt.NewParser(
			gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
			gojwt.WithIssuer(issuer),
			gojwt.WithExpirationRequired(),
			gojwt.WithLeeway(5*time.Second),
		),
		revoked: revoked,
	}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (Claims, error) {
	var rc gojwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(raw, &rc, func(*gojwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if rc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	claims := Claims{UserID: rc.Subject, TokenID: rc.ID}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time
	}

	if v.revoked != nil && claims.TokenID != "" {
		revoked, err := v.revoked.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return Claims{}, fmt.Errorf("failed to check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrRevokedToken
		}
	}
	return claims, nil
}
