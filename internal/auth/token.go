// ABOUTME: JWT token verification for authenticating agent API requests
// ABOUTME: Accepts HS256 tokens signed with a shared secret and RS256 tokens from a JWKS

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum HS256 secret size in bytes.
const MinSecretLength = 32

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrKeyNotFound  = errors.New("public key not found")
	ErrNoSigningKey = errors.New("no signing key configured")
)

// InvalidTokenError carries the parser's reason for rejecting a token.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return "invalid token: " + e.Reason
}

// Is makes errors.Is(err, ErrInvalidToken) match.
func (e *InvalidTokenError) Is(target error) bool {
	return target == ErrInvalidToken
}

// Claims is the verified identity extracted from a token.
type Claims struct {
	Subject   string
	Username  string
	Roles     []string
	ExpiresAt time.Time
}

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*Claims, error)
}

// VerifierConfig configures a JWTVerifier. At least one of Secret or Keys
// must be set.
type VerifierConfig struct {
	// Secret enables HS256 verification and token generation.
	Secret []byte
	// Keys enables RS256 verification against published keys.
	Keys KeySource
	// Issuer and Audience are checked when non-empty.
	Issuer   string
	Audience string
	// ClientID selects resource_access.<client_id>.roles. Top-level
	// "roles" is read when empty.
	ClientID string
}

// JWTVerifier implements TokenVerifier for HS256 and RS256 signed JWTs
type JWTVerifier struct {
	cfg     VerifierConfig
	methods []string
}

// NewJWTVerifier creates a verifier. Returns an error if the secret is
// shorter than MinSecretLength or no key material is configured.
func NewJWTVerifier(cfg VerifierConfig) (*JWTVerifier, error) {
	var methods []string
	if len(cfg.Secret) > 0 {
		if len(cfg.Secret) < MinSecretLength {
			return nil, fmt.Errorf("jwt secret must be at least %d bytes, got %d", MinSecretLength, len(cfg.Secret))
		}
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.Keys != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	if len(methods) == 0 {
		return nil, errors.New("jwt verifier needs a secret or a key source")
	}
	return &JWTVerifier{cfg: cfg, methods: methods}, nil
}

// Verify validates the token and extracts its identity claims.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return v.cfg.Secret, nil
		case *jwt.SigningMethodRSA:
			return v.cfg.Keys.Key(ctx, token)
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
	}, opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, ErrKeyNotFound):
			return nil, ErrKeyNotFound
		default:
			return nil, &InvalidTokenError{Reason: err.Error()}
		}
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return v.extractClaims(claims)
}

func (v *JWTVerifier) extractClaims(claims jwt.MapClaims) (*Claims, error) {
	sub, _ := claims["sub"].(string)
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username = sub
	}
	if username == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	out := &Claims{
		Subject:  sub,
		Username: username,
		Roles:    v.roles(claims),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// roles reads Keycloak client roles, or top-level roles without a client ID.
func (v *JWTVerifier) roles(claims jwt.MapClaims) []string {
	var raw interface{}
	if v.cfg.ClientID == "" {
		raw = claims["roles"]
	} else {
		access, _ := claims["resource_access"].(map[string]interface{})
		client, _ := access[v.cfg.ClientID].(map[string]interface{})
		raw = client["roles"]
	}

	list, _ := raw.([]interface{})
	roles := make([]string, 0, len(list))
	for _, r := range list {
		if s, ok := r.(string); ok && s != "" {
			roles = append(roles, s)
		}
	}
	return roles
}

// Generate creates an HS256 token for local development and tests. The
// token carries the configured issuer and audience so Verify accepts it.
func (v *JWTVerifier) Generate(username string, roles []string, expiresIn time.Duration) (string, error) {
	if len(v.cfg.Secret) == 0 {
		return "", ErrNoSigningKey
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":                username,
		"preferred_username": username,
		"iat":                now.Unix(),
		"exp":                now.Add(expiresIn).Unix(),
	}
	if v.cfg.Issuer != "" {
		claims["iss"] = v.cfg.Issuer
	}
	if v.cfg.Audience != "" {
		claims["aud"] = v.cfg.Audience
	}
	if len(roles) > 0 {
		if v.cfg.ClientID == "" {
			claims["roles"] = roles
		} else {
			claims["resource_access"] = map[string]interface{}{
				v.cfg.ClientID: map[string]interface{}{"roles": roles},
			}
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.cfg.Secret)
}
