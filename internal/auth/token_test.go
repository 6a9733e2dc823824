// ABOUTME: Unit tests for JWT verification, static bcrypt tokens and the
// ABOUTME: combined multi-verifier.

package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"))

	token, err := verifier.Generate("subject-123", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	subject, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "subject-123" {
		t.Errorf("Verify() = %q, want subject-123", subject)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret-key-for-jwt-signing"))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"truncated", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ4In0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := verifier.Verify(tt.token); err == nil {
				t.Error("Verify() should fail")
			}
		})
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	signer := NewJWTVerifier([]byte("secret-one"))
	verifier := NewJWTVerifier([]byte("secret-two"))

	token, err := signer.Generate("subject", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret"))

	token, err := verifier.Generate("subject", -time.Minute)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestStaticVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	verifier := NewStaticVerifier([]string{string(hash)})

	subject, err := verifier.Verify("operator-token")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "static" {
		t.Errorf("Verify() = %q, want static", subject)
	}

	if _, err := verifier.Verify("wrong-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestMultiVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("static-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	jwtVerifier := NewJWTVerifier([]byte("jwt-secret"))
	multi := NewMultiVerifier(jwtVerifier, NewStaticVerifier([]string{string(hash)}))
	if multi == nil {
		t.Fatal("NewMultiVerifier() = nil with verifiers present")
	}

	// JWT path.
	token, err := jwtVerifier.Generate("subject-jwt", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if subject, err := multi.Verify(token); err != nil || subject != "subject-jwt" {
		t.Errorf("Verify(jwt) = %q, %v", subject, err)
	}

	// Static path.
	if subject, err := multi.Verify("static-token"); err != nil || subject != "static" {
		t.Errorf("Verify(static) = %q, %v", subject, err)
	}

	// Neither.
	if _, err := multi.Verify("nope"); err == nil {
		t.Error("Verify() should fail for unknown tokens")
	}
}

func TestMultiVerifier_EmptyMeansDisabled(t *testing.T) {
	if NewMultiVerifier() != nil {
		t.Error("NewMultiVerifier() should be nil with no verifiers")
	}
	if NewMultiVerifier(nil, nil) != nil {
		t.Error("NewMultiVerifier(nil, nil) should be nil")
	}
}
