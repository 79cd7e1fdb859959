package auth

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier defines the interface for JWT token verification
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
}

// Claims represents a Supabase auth access token
type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWKSVerifier validates asymmetric Supabase tokens against the project's
// published signing keys
type JWKSVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	cancel context.CancelFunc
}

// NewJWKSVerifier fetches the key set once and keeps refreshing it in the
// background until Close.
func NewJWKSVerifier(jwksURL, issuer string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	jwks, err := keyfunc.NewDefaultCtx(initCtx, []string{jwksURL})
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "create jwks keyfunc")
	}

	return &JWKSVerifier{jwks: jwks, issuer: issuer, cancel: cancel}, nil
}

// Validate validates a JWT token and returns the claims
func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.jwks.Keyfunc, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	return claimsOf(token)
}

// Close stops the background key refresh
func (v *JWKSVerifier) Close() error {
	v.cancel()
	return nil
}

func claimsOf(token *jwt.Token) (*Claims, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
