// ABOUTME: Bearer token verification for the MCP endpoint.
// ABOUTME: Supports HS256 JWTs and static tokens stored as bcrypt hashes.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenVerifier defines the interface for token verification.
type TokenVerifier interface {
	Verify(tokenString string) (subject string, err error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token and extracts the subject from the "sub" claim.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}

// Generate creates a new JWT token for the given subject with expiration.
func (v *JWTVerifier) Generate(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// StaticVerifier implements TokenVerifier against a fixed set of tokens
// stored as bcrypt hashes. Intended for hand-issued operator tokens; the
// plaintext never appears in config.
type StaticVerifier struct {
	hashes [][]byte
}

// NewStaticVerifier creates a verifier for the given bcrypt hashes.
func NewStaticVerifier(hashes []string) *StaticVerifier {
	hs := make([][]byte, len(hashes))
	for i, h := range hashes {
		hs[i] = []byte(h)
	}
	return &StaticVerifier{hashes: hs}
}

// Verify compares the token against every configured hash.
func (v *StaticVerifier) Verify(tokenString string) (string, error) {
	for _, hash := range v.hashes {
		if bcrypt.CompareHashAndPassword(hash, []byte(tokenString)) == nil {
			return "static", nil
		}
	}
	return "", ErrInvalidToken
}

// MultiVerifier tries each verifier in order and accepts the first success.
type MultiVerifier struct {
	verifiers []TokenVerifier
}

// NewMultiVerifier combines verifiers. Returns nil if none are given, which
// callers treat as authentication disabled.
func NewMultiVerifier(verifiers ...TokenVerifier) *MultiVerifier {
	nonNil := make([]TokenVerifier, 0, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			nonNil = append(nonNil, v)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return &MultiVerifier{verifiers: nonNil}
}

// Verify returns the first successful verification.
func (v *MultiVerifier) Verify(tokenString string) (string, error) {
	var lastErr error
	for _, verifier := range v.verifiers {
		subject, err := verifier.Verify(tokenString)
		if err == nil {
			return subject, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrInvalidToken
	}
	return "", lastErr
}
