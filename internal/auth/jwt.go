package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload issued by the account service. Role carries the
// raw role label; use NormalizeRole before making decisions on it.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Claimant returns the normalized identity the core operates on.
func (c Claims) Claimant() Claimant {
	return Claimant{UserID: c.Subject, Role: NormalizeRole(c.Role)}
}

// Issue signs an access token for subject. Login lives elsewhere; this is used
// by tooling and tests.
func Issue(subject, role, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("missing subject")
	}
	return *claims, nil
}
