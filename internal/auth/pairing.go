// Package auth issues and validates the tokens a watch presents to its paired phone.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim of every pairing token
const Issuer = "bpmetrics"

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidClaims is returned when the token claims are invalid
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Claims represents the JWT claims of a pairing token
type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// PairingService handles pairing token generation and validation
type PairingService struct {
	secret []byte
	ttl    time.Duration
}

// NewPairingService creates a new pairing service. A non-positive ttl issues
// tokens without an expiry.
func NewPairingService(secret string, ttl time.Duration) *PairingService {
	return &PairingService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue generates a token for deviceID and returns it with its expiry
// (zero when the token never expires)
func (s *PairingService) Issue(deviceID string) (string, time.Time, error) {
	return s.IssueWithTTL(deviceID, s.ttl)
}

// IssueWithTTL generates a token for deviceID valid for ttl
func (s *PairingService) IssueWithTTL(deviceID string, ttl time.Duration) (string, time.Time, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", time.Time{}, fmt.Errorf("%w: device id is required", ErrInvalidClaims)
	}

	now := time.Now()
	claims := &Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   deviceID,
		},
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign pairing token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate validates a pairing token and returns its claims
func (s *PairingService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.DeviceID == "" {
		return nil, fmt.Errorf("%w: missing device id", ErrInvalidClaims)
	}

	return claims, nil
}

// TTL returns the default token lifetime
func (s *PairingService) TTL() time.Duration {
	return s.ttl
}
