package anonymous

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndLookup(t *testing.T) {
	ctx := context.Background()
	svc := New("secret", time.Hour)

	token, anonID, err := svc.Issue(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(anonID, "guest_"))

	got, err := svc.LookupByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, anonID, got)
	assert.Equal(t, 3600, svc.AccessTTLSeconds())
}

func TestLookupRejectsForeignSecret(t *testing.T) {
	ctx := context.Background()
	token, _, err := New("other", time.Hour).Issue(ctx)
	require.NoError(t, err)

	_, err = New("secret", time.Hour).LookupByToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLookupRejectsExpired(t *testing.T) {
	ctx := context.Background()
	svc := New("secret", time.Minute)
	issuedAt := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.IssueFor(ctx, "guest_old")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.LookupByToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLookupRejectsNonGuestRole(t *testing.T) {
	claims := jwt.MapClaims{"sub": "u1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = New("secret", time.Hour).LookupByToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
