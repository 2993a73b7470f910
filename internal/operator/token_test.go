package operator_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stresssense/stresssense/internal/operator"
)

const (
	testKey      = "test-secret-key-for-testing-only"
	testIssuer   = "https://sso.stresssense.internal"
	testAudience = "stresssense-api"
)

// signToken builds a token the way the identity provider would.
func signToken(t *testing.T, key string, mutate func(*operator.Claims)) string {
	t.Helper()
	now := time.Now()
	claims := &operator.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "opr_test123",
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		OperatorID: "opr_test123",
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func newVerifier() *operator.Verifier {
	return operator.NewVerifier(operator.VerifierConfig{
		SigningKey: testKey,
		Issuer:     testIssuer,
		Audience:   testAudience,
	})
}

func TestVerifier_ValidToken(t *testing.T) {
	claims, err := newVerifier().Verify(signToken(t, testKey, nil))
	require.NoError(t, err)
	assert.Equal(t, "opr_test123", claims.OperatorID)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestVerifier_FallsBackToSubject(t *testing.T) {
	token := signToken(t, testKey, func(c *operator.Claims) {
		c.OperatorID = ""
	})
	claims, err := newVerifier().Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "opr_test123", claims.OperatorID)
}

func TestVerifier_MalformedToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newVerifier().Verify(tt.token)
			assert.ErrorIs(t, err, operator.ErrInvalidToken)
		})
	}
}

func TestVerifier_WrongSigningKey(t *testing.T) {
	_, err := newVerifier().Verify(signToken(t, "some-other-key", nil))
	assert.ErrorIs(t, err, operator.ErrInvalidToken)
}

func TestVerifier_WrongIssuer(t *testing.T) {
	token := signToken(t, testKey, func(c *operator.Claims) {
		c.Issuer = "https://sso.elsewhere.example"
	})
	_, err := newVerifier().Verify(token)
	assert.ErrorIs(t, err, operator.ErrInvalidToken)
}

func TestVerifier_WrongAudience(t *testing.T) {
	token := signToken(t, testKey, func(c *operator.Claims) {
		c.Audience = jwt.ClaimStrings{"some-other-api"}
	})
	_, err := newVerifier().Verify(token)
	assert.ErrorIs(t, err, operator.ErrInvalidToken)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	token := signToken(t, testKey, func(c *operator.Claims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	})
	_, err := newVerifier().Verify(token)
	assert.ErrorIs(t, err, operator.ErrTokenExpired)
}

func TestVerifier_MissingExpiry(t *testing.T) {
	token := signToken(t, testKey, func(c *operator.Claims) {
		c.ExpiresAt = nil
	})
	_, err := newVerifier().Verify(token)
	assert.ErrorIs(t, err, operator.ErrInvalidToken)
}
