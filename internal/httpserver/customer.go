package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
)

type signupRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type tokenRequest struct {
	GrantType string `form:"grant_type" binding:"required"`
	Username  string `form:"username" binding:"required"`
	Password  string `form:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AnonymousID  string `json:"anonymous_id,omitempty"`
}

type sessionResponse struct {
	Customer        *domain.Customer `json:"customer"`
	Token           tokenResponse    `json:"token"`
	GuestCartMerged bool             `json:"guestCartMerged"`
	Cart            *cartResponse    `json:"cart,omitempty"`
}

func (a *api) anonymousTokenHandler(c *gin.Context) {
	token, anonID, err := a.deps.AnonymousSvc.Issue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   a.deps.AnonymousSvc.AccessTTLSeconds(),
		AnonymousID: anonID,
	})
}

func (a *api) signupHandler(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "email and password are required")
		return
	}
	sess, err := a.deps.CustomerSvc.Signup(c.Request.Context(), customersvc.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.establishSession(c, sess))
}

func (a *api) tokenHandler(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		abortBadRequest(c, "grant_type, username and password are required")
		return
	}
	if req.GrantType != "password" {
		abortBadRequest(c, "unsupported grant_type")
		return
	}
	sess, err := a.deps.CustomerSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.establishSession(c, sess))
}

// establishSession builds the sign-in response and folds in the guest cart
// named by the anonymous token, if any. A failed merge leaves the guest cart
// in place and does not fail the sign-in.
func (a *api) establishSession(c *gin.Context, sess *customersvc.Session) sessionResponse {
	resp := sessionResponse{
		Customer: sess.Customer,
		Token: tokenResponse{
			AccessToken:  sess.AccessToken,
			TokenType:    "Bearer",
			ExpiresIn:    a.deps.CustomerSvc.AccessTTLSeconds(),
			RefreshToken: sess.RefreshToken,
		},
	}
	anonID := a.guestSessionID(c)
	if anonID == "" || a.deps.MergeSvc == nil {
		return resp
	}
	ctx := c.Request.Context()
	guest, err := a.deps.CartSvc.OpenGuest(ctx, anonID)
	if err != nil {
		a.logger.Printf("http: open guest cart anonymous_id=%s error=%v", anonID, err)
		return resp
	}
	if _, err := a.deps.MergeSvc.MergeGuestCart(ctx, sess.Customer.ID, guest); err != nil {
		a.logger.Printf("http: merge guest cart user_id=%s anonymous_id=%s error=%v", sess.Customer.ID, anonID, err)
		return resp
	}
	resp.GuestCartMerged = true
	if view, err := a.deps.CartSvc.Get(ctx, identityForUser(sess.Customer.ID)); err == nil {
		cr := a.toCartResponse(view)
		resp.Cart = &cr
	}
	return resp
}

// guestSessionID finds the anonymous session of a signing-in caller, from the
// dedicated header or from an anonymous bearer token.
func (a *api) guestSessionID(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(anonymousTokenHeader)); token != "" && a.deps.AnonymousSvc != nil {
		anonID, err := a.deps.AnonymousSvc.LookupByToken(c.Request.Context(), token)
		if err != nil {
			a.logger.Printf("http: ignore anonymous token error=%v", err)
			return ""
		}
		return anonID
	}
	return identityFrom(c).AnonymousID
}

func (a *api) meHandler(c *gin.Context) {
	cust := customerFrom(c)
	if cust == nil {
		writeError(c, domain.ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": cust})
}

func (a *api) logoutHandler(c *gin.Context) {
	token, _ := c.Request.Context().Value(tokenCtxKey).(string)
	if token == "" {
		writeError(c, domain.ErrUnauthorized)
		return
	}
	if err := a.deps.CustomerSvc.Logout(c.Request.Context(), token); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
