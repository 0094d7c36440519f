// Package anonymous issues signed tokens for shoppers who have not signed in.
// The token subject is the guest cart's anonymous id.
package anonymous

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storefront/internal/guestcart"
)

var ErrInvalidToken = errors.New("invalid token")

const guestRole = "guest"

type Service struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func New(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{secret: []byte(secret), accessTTL: ttl, now: time.Now}
}

// Issue returns a token for a new anonymous id.
func (s *Service) Issue(ctx context.Context) (accessToken, anonymousID string, err error) {
	anonymousID = guestcart.NewAnonymousID()
	accessToken, err = s.IssueFor(ctx, anonymousID)
	if err != nil {
		return "", "", err
	}
	return accessToken, anonymousID, nil
}

// IssueFor signs a token for an existing anonymous id.
func (s *Service) IssueFor(_ context.Context, anonymousID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  anonymousID,
		"role": guestRole,
		"iat":  now.Unix(),
		"exp":  now.Add(s.accessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign anonymous token: %w", err)
	}
	return signed, nil
}

// LookupByToken validates a token and returns its anonymous id.
func (s *Service) LookupByToken(_ context.Context, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["role"] != guestRole {
		return "", ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}
