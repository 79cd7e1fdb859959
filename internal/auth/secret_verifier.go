package auth

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

// SecretVerifier validates HS256 tokens signed with the project JWT secret
type SecretVerifier struct {
	secret []byte
	issuer string
}

func NewSecretVerifier(secret, issuer string) *SecretVerifier {
	return &SecretVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *SecretVerifier) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	return claimsOf(token)
}

// Sign issues an HS256 token for userID. Used by tests and local tooling.
func (v *SecretVerifier) Sign(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ChainVerifier accepts a token if any verifier does
type ChainVerifier []TokenVerifier

func (c ChainVerifier) Validate(tokenString string) (*Claims, error) {
	if len(c) == 0 {
		return nil, errors.New("authentication not configured")
	}
	var firstErr error
	for _, v := range c {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
