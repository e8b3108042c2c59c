package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthorized is the single error class surfaced for any credential failure.
	ErrUnauthorized = errors.New("authentication error")
	// ErrMissingToken is returned when a request carries no credential.
	ErrMissingToken = fmt.Errorf("%w: missing token", ErrUnauthorized)
	// ErrInvalidToken is returned when the signature, algorithm or claims are wrong.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = fmt.Errorf("%w: token has expired", ErrUnauthorized)
)

// CookieName is the cookie the API process sets on login.
const CookieName = "accessToken"

// Claims are the access token claims shared with the issuing API process.
// The user identifier travels in "_id"; "sub" is accepted as a fallback.
type Claims struct {
	UserID string `json:"_id,omitempty"`
	jwt.RegisteredClaims
}

// User returns the authenticated user identifier.
func (c *Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// Verifier validates HS256 access tokens against a shared secret.
// It never issues tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier. A non-empty issuer is enforced on every token.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify checks the signature and expiry of token and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.User() == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractToken picks the credential from the accessToken cookie value or,
// failing that, from an "Authorization: Bearer <token>" header value.
func ExtractToken(cookie, authorization string) (string, error) {
	if cookie = strings.TrimSpace(cookie); cookie != "" {
		return cookie, nil
	}

	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		if token := strings.TrimSpace(parts[1]); token != "" {
			return token, nil
		}
	}
	return "", ErrMissingToken
}
