package storage

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signedURLIssuer = "obra-api/plans"

// downloadClaims binds a download token to one stored plan file.
type downloadClaims struct {
	PlanID int64  `json:"plan_id"`
	Key    string `json:"key"`
	jwt.RegisteredClaims
}

// SignedURLSigner creates and validates short-lived plan download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the plan and its storage key.
func (s *SignedURLSigner) Generate(planID int64, key string) (string, time.Time, error) {
	if planID <= 0 || key == "" {
		return "", time.Time{}, fmt.Errorf("planID and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := downloadClaims{
		PlanID: planID,
		Key:    key,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    signedURLIssuer,
			Subject:   strconv.FormatInt(planID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates a token and returns the embedded plan id and storage key.
func (s *SignedURLSigner) Parse(token string) (planID int64, key string, err error) {
	claims := &downloadClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signedURLIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", fmt.Errorf("token expired")
		}
		return 0, "", fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid || claims.PlanID <= 0 || claims.Key == "" {
		return 0, "", fmt.Errorf("invalid token claims")
	}
	return claims.PlanID, claims.Key, nil
}
