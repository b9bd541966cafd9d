package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles.
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// Identity is the authenticated caller. Subject is the patient id for
// patients and the display name for doctors.
type Identity struct {
	Subject string `json:"subject"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

type JWTConfig struct {
	Issuer     string
	SigningKey []byte
	TTL        time.Duration
}

const defaultTokenTTL = 12 * time.Hour

// IssueToken signs an HS256 token for id.
func IssueToken(cfg JWTConfig, id Identity, now time.Time) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, errors.New("auth: signing key not configured")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name: id.Name,
		Role: id.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ParseToken validates a token and returns the identity it carries.
func ParseToken(cfg JWTConfig, tokenStr string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, errors.New("auth: invalid token")
	}
	if claims.Role != RolePatient && claims.Role != RoleDoctor {
		return Identity{}, fmt.Errorf("auth: unknown role %q", claims.Role)
	}
	return Identity{Subject: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}
