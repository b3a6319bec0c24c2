package util

import (
	"errors"
	"testing"
	"time"

	"online_quiz_backend/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret-0123456789abcdef"

func testUser() *model.User {
	return &model.User{
		BaseModel: model.BaseModel{ID: 7},
		Email:     "alice@example.com",
		Role:      model.RoleUser,
	}
}

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT(token, testSecret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Role != model.RoleUser || claims.Email != "alice@example.com" {
		t.Fatalf("claims round-trip mismatch: %+v", claims)
	}
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseJWT(token, "a-different-secret-value"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestParseJWTRejectsExpired(t *testing.T) {
	token, err := GenerateJWT(testUser(), testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseJWT(token, testSecret); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestParseJWTRejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		UserID: 7,
		Role:   model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	if _, err := ParseJWT(token, testSecret); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for alg=none, got %v", err)
	}
}

func TestParseJWTRejectsGarbage(t *testing.T) {
	if _, err := ParseJWT("definitely.not.a-jwt", testSecret); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
