// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests HS256 and RS256 tokens, issuer/audience checks, roles and expiry

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTestSecret is a 32-byte secret that meets MinSecretLength requirement.
var tokenTestSecret = []byte("token-verifier-test-secret-32b!!")

func newHS256Verifier(t *testing.T, cfg VerifierConfig) *JWTVerifier {
	t.Helper()
	cfg.Secret = tokenTestSecret
	v, err := NewJWTVerifier(cfg)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

// staticKeys is a KeySource over a fixed map.
type staticKeys map[string]*rsa.PublicKey

func (s staticKeys) Key(_ context.Context, token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if k, ok := s[kid]; ok {
		return k, nil
	}
	return nil, ErrKeyNotFound
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	return key
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestNewJWTVerifier_Validation(t *testing.T) {
	if _, err := NewJWTVerifier(VerifierConfig{}); err == nil {
		t.Error("NewJWTVerifier() with no key material should fail")
	}
	if _, err := NewJWTVerifier(VerifierConfig{Secret: []byte("short")}); err == nil {
		t.Error("NewJWTVerifier() with short secret should fail")
	}
	if _, err := NewJWTVerifier(VerifierConfig{Keys: staticKeys{}}); err != nil {
		t.Errorf("NewJWTVerifier() with key source error = %v", err)
	}
}

func TestJWTVerifier_GenerateAndVerify(t *testing.T) {
	v := newHS256Verifier(t, VerifierConfig{})

	token, err := v.Generate("jettro", nil, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Username != "jettro" {
		t.Errorf("Username = %q, want %q", claims.Username, "jettro")
	}
	if claims.Subject != "jettro" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "jettro")
	}
	if len(claims.Roles) != 0 {
		t.Errorf("Roles = %v, want none", claims.Roles)
	}
	if time.Until(claims.ExpiresAt) <= 0 {
		t.Errorf("ExpiresAt = %v, want future", claims.ExpiresAt)
	}
}

func TestJWTVerifier_Roles(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
	}{
		{name: "top-level roles", clientID: ""},
		{name: "client roles", clientID: "secure-agent-ui"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newHS256Verifier(t, VerifierConfig{ClientID: tt.clientID})

			token, err := v.Generate("jettro", []string{"office_management", "user"}, time.Hour)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}

			claims, err := v.Verify(context.Background(), token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if len(claims.Roles) != 2 || claims.Roles[0] != "office_management" || claims.Roles[1] != "user" {
				t.Errorf("Roles = %v, want [office_management user]", claims.Roles)
			}
		})
	}
}

func TestJWTVerifier_RolesFromOtherClientIgnored(t *testing.T) {
	v := newHS256Verifier(t, VerifierConfig{ClientID: "secure-agent-ui"})
	other := newHS256Verifier(t, VerifierConfig{ClientID: "another-client"})

	token, err := other.Generate("jettro", []string{"office_management"}, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(claims.Roles) != 0 {
		t.Errorf("Roles = %v, want none", claims.Roles)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	v := newHS256Verifier(t, VerifierConfig{})

	other, err := NewJWTVerifier(VerifierConfig{Secret: []byte("a-different-secret-of-32-bytes!!")})
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	wrongSecret, _ := other.Generate("jettro", nil, time.Hour)

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "jettro"}).SignedString(tokenTestSecret)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{name: "wrong secret", token: wrongSecret},
		{name: "missing exp", token: noExp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			if err == nil {
				t.Fatal("Verify() should have returned an error")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	v := newHS256Verifier(t, VerifierConfig{})

	token, err := v.Generate("jettro", nil, -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = v.Verify(context.Background(), token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_MissingIdentity(t *testing.T) {
	v := newHS256Verifier(t, VerifierConfig{})

	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(tokenTestSecret)

	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}

func TestJWTVerifier_SubFallback(t *testing.T) {
	v := newHS256Verifier(t, VerifierConfig{})

	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "uuid-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(tokenTestSecret)

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Username != "uuid-42" {
		t.Errorf("Username = %q, want sub fallback", claims.Username)
	}
}

func TestJWTVerifier_IssuerAndAudience(t *testing.T) {
	v := newHS256Verifier(t, VerifierConfig{Issuer: "https://sso/realms/a", Audience: "account"})

	good, _ := v.Generate("jettro", nil, time.Hour)
	if _, err := v.Verify(context.Background(), good); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	wrongIssuer := newHS256Verifier(t, VerifierConfig{Issuer: "https://sso/realms/b", Audience: "account"})
	bad, _ := wrongIssuer.Generate("jettro", nil, time.Hour)
	if _, err := v.Verify(context.Background(), bad); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() wrong issuer error = %v, want ErrInvalidToken", err)
	}

	wrongAudience := newHS256Verifier(t, VerifierConfig{Issuer: "https://sso/realms/a", Audience: "other"})
	bad, _ = wrongAudience.Generate("jettro", nil, time.Hour)
	if _, err := v.Verify(context.Background(), bad); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() wrong audience error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTVerifier_RS256(t *testing.T) {
	key := generateRSAKey(t)
	v, err := NewJWTVerifier(VerifierConfig{
		Keys:     staticKeys{"kid-1": &key.PublicKey},
		ClientID: "secure-agent-ui",
	})
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}

	token := signRS256(t, key, "kid-1", jwt.MapClaims{
		"sub":                "uuid-1",
		"preferred_username": "jettro",
		"exp":                time.Now().Add(time.Hour).Unix(),
		"resource_access": map[string]interface{}{
			"secure-agent-ui": map[string]interface{}{"roles": []string{"office_management"}},
		},
	})

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Username != "jettro" || claims.Subject != "uuid-1" {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "office_management" {
		t.Errorf("Roles = %v", claims.Roles)
	}
}

func TestJWTVerifier_RS256UnknownKid(t *testing.T) {
	key := generateRSAKey(t)
	v, _ := NewJWTVerifier(VerifierConfig{Keys: staticKeys{"kid-1": &key.PublicKey}})

	token := signRS256(t, key, "kid-2", jwt.MapClaims{
		"sub": "jettro",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Verify() error = %v, want ErrKeyNotFound", err)
	}
}

func TestJWTVerifier_RejectsUnconfiguredMethod(t *testing.T) {
	// RS256-only verifier must not accept HS256 tokens.
	key := generateRSAKey(t)
	v, _ := NewJWTVerifier(VerifierConfig{Keys: staticKeys{"kid-1": &key.PublicKey}})
	hs := newHS256Verifier(t, VerifierConfig{})
	token, _ := hs.Generate("jettro", nil, time.Hour)

	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
	}
	if !strings.Contains(err.Error(), "signing method") {
		t.Errorf("Verify() error = %q, want signing method reason", err.Error())
	}
}

func TestJWTVerifier_GenerateWithoutSecret(t *testing.T) {
	v, _ := NewJWTVerifier(VerifierConfig{Keys: staticKeys{}})

	if _, err := v.Generate("jettro", nil, time.Hour); !errors.Is(err, ErrNoSigningKey) {
		t.Errorf("Generate() error = %v, want ErrNoSigningKey", err)
	}
}
