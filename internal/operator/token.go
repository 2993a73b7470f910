// Package operator validates access tokens presented by HR-console
// operators. Tokens are issued by the corporate identity provider; this
// service only verifies them, so there is no issuance path here.
package operator

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Predefined token errors.
var (
	ErrInvalidToken = errors.New("invalid operator token")
	ErrTokenExpired = errors.New("operator token has expired")
)

// Default issuer and audience claims expected on operator tokens.
const (
	DefaultIssuer   = "https://sso.stresssense.internal"
	DefaultAudience = "stresssense-api"
)

// Claims represents the claims carried by operator access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// OperatorID is the authenticated operator's ID.
	OperatorID string `json:"oid"`
}

// Verifier validates operator access tokens.
type Verifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

// VerifierConfig holds configuration for the token verifier.
type VerifierConfig struct {
	// SigningKey is the shared secret the identity provider signs with.
	SigningKey string

	// Issuer is the expected issuer claim. Defaults to DefaultIssuer.
	Issuer string

	// Audience is the expected audience claim. Defaults to DefaultAudience.
	Audience string
}

// NewVerifier creates a new token verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := cfg.Audience
	if audience == "" {
		audience = DefaultAudience
	}
	return &Verifier{
		signingKey: []byte(cfg.SigningKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Verify validates a token and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.OperatorID == "" {
		claims.OperatorID = claims.Subject
	}

	return claims, nil
}
