package httpserver

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
)

type ctxKey string

const (
	identityCtxKey ctxKey = "identity"
	customerCtxKey ctxKey = "customer"
	tokenCtxKey    ctxKey = "token"

	// anonymousTokenHeader carries the guest session token alongside a
	// customer bearer token so sign-in can merge the guest cart.
	anonymousTokenHeader = "X-Anonymous-Token"
)

// identityMiddleware resolves the bearer token to a customer or an anonymous
// session. Requests without a token pass through with an empty identity; a
// token that matches neither is rejected.
func identityMiddleware(customers customerService, anonymous anonymousService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if customers != nil {
			if cust, err := customers.LookupByToken(ctx, token); err == nil && cust != nil {
				id := cartsvc.Identity{UserID: cust.ID}
				ctx = context.WithValue(ctx, customerCtxKey, cust)
				ctx = context.WithValue(ctx, identityCtxKey, id)
				ctx = context.WithValue(ctx, tokenCtxKey, token)
				c.Request = c.Request.WithContext(ctx)
				c.Next()
				return
			}
		}
		if anonymous != nil {
			if anonID, err := anonymous.LookupByToken(ctx, token); err == nil {
				ctx = context.WithValue(ctx, identityCtxKey, cartsvc.Identity{AnonymousID: anonID})
				c.Request = c.Request.WithContext(ctx)
				c.Next()
				return
			}
		}
		writeError(c, errInvalidToken)
		c.Abort()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func identityFrom(c *gin.Context) cartsvc.Identity {
	id, _ := c.Request.Context().Value(identityCtxKey).(cartsvc.Identity)
	return id
}

func customerFrom(c *gin.Context) *domain.Customer {
	cust, _ := c.Request.Context().Value(customerCtxKey).(*domain.Customer)
	return cust
}

// requireUser returns the signed-in user's id or writes 401.
func requireUser(c *gin.Context) (string, bool) {
	id := identityFrom(c)
	if id.UserID == "" {
		writeError(c, domain.ErrUnauthorized)
		return "", false
	}
	return id.UserID, true
}
