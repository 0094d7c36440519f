package customer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	tokenrepo "storefront/internal/repository/token"
)

// Opaque tokens are 32 random bytes. A duplicate insert is retried with a
// fresh value a bounded number of times.
const (
	tokenBytes       = 32
	maxTokenAttempts = 3
)

// issueSession stores a fresh access and refresh token for c.
func (s *Service) issueSession(ctx context.Context, c *domain.Customer) (*Session, error) {
	access, err := s.storeToken(ctx, c.ID, tokenrepo.KindAccess, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.storeToken(ctx, c.ID, tokenrepo.KindRefresh, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Session{Customer: c, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) storeToken(ctx context.Context, customerID, kind string, ttl time.Duration) (string, error) {
	expiresAt := s.now().Add(ttl)
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		value, err := opaqueToken()
		if err != nil {
			return "", err
		}
		err = s.tokens.Create(ctx, tokenrepo.Token{Token: value, CustomerID: customerID, Kind: kind, ExpiresAt: expiresAt})
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return value, err
		}
	}
	return "", fmt.Errorf("%s token: %d collisions in a row", kind, maxTokenAttempts)
}

// accessOwner resolves a live access token to its customer id. Refresh tokens
// are not accepted as bearers; an expired token is removed on sight.
func (s *Service) accessOwner(ctx context.Context, value string) (string, error) {
	t, err := s.tokens.Get(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if t.Kind != tokenrepo.KindAccess || t.CustomerID == "" {
		return "", ErrInvalidToken
	}
	if s.now().After(t.ExpiresAt) {
		_ = s.tokens.Delete(ctx, value)
		return "", ErrInvalidToken
	}
	return t.CustomerID, nil
}

func opaqueToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
