package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/money"
	cartsvc "storefront/internal/service/cart"
)

type cartResponse struct {
	*cartsvc.View
	TotalFormatted string `json:"totalFormatted"`
}

type addLineRequest struct {
	ProductVariantID string `json:"productVariantId" binding:"required"`
	Quantity         int    `json:"quantity"`
}

type updateLineRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type mergeRequest struct {
	Lines        []cartsvc.LineInput `json:"lines"`
	AttemptToken string              `json:"attemptToken"`
}

func identityForUser(userID string) cartsvc.Identity {
	return cartsvc.Identity{UserID: userID}
}

func (a *api) toCartResponse(v *cartsvc.View) cartResponse {
	return cartResponse{View: v, TotalFormatted: money.FormatCents(v.TotalCents, a.deps.Currency)}
}

func (a *api) writeCart(c *gin.Context, status int, v *cartsvc.View, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, a.toCartResponse(v))
}

func (a *api) getCartHandler(c *gin.Context) {
	v, err := a.deps.CartSvc.Get(c.Request.Context(), identityFrom(c))
	a.writeCart(c, http.StatusOK, v, err)
}

func (a *api) clearCartHandler(c *gin.Context) {
	v, err := a.deps.CartSvc.Clear(c.Request.Context(), identityFrom(c))
	a.writeCart(c, http.StatusOK, v, err)
}

func (a *api) addLineHandler(c *gin.Context) {
	var req addLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "productVariantId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	v, err := a.deps.CartSvc.Add(c.Request.Context(), identityFrom(c), req.ProductVariantID, req.Quantity)
	a.writeCart(c, http.StatusOK, v, err)
}

func (a *api) updateLineHandler(c *gin.Context) {
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "quantity is required")
		return
	}
	v, err := a.deps.CartSvc.SetQuantity(c.Request.Context(), identityFrom(c), c.Param("variantId"), *req.Quantity)
	a.writeCart(c, http.StatusOK, v, err)
}

func (a *api) removeLineHandler(c *gin.Context) {
	v, err := a.deps.CartSvc.Remove(c.Request.Context(), identityFrom(c), c.Param("variantId"))
	a.writeCart(c, http.StatusOK, v, err)
}

// mergeHandler merges a client-held guest cart into the caller's server
// cart. With no lines, the anonymous session named by the X-Anonymous-Token
// header is merged instead, keeping the price each line was added at.
//
// Submitted lines carry only variant and quantity: a price sent by the
// client is ignored and new lines are priced from the catalog at merge time.
// This differs from merge.Service.Merge, which keeps the price snapshot of
// the lines it is handed, because a device-held price cannot be trusted.
func (a *api) mergeHandler(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req mergeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, "invalid merge payload")
			return
		}
	}
	ctx := c.Request.Context()

	if len(req.Lines) == 0 {
		anonID := a.guestSessionID(c)
		if anonID == "" {
			a.writeUserCart(c, userID)
			return
		}
		guest, err := a.deps.CartSvc.OpenGuest(ctx, anonID)
		if err != nil {
			writeError(c, err)
			return
		}
		if _, err := a.deps.MergeSvc.MergeGuestCart(ctx, userID, guest); err != nil {
			writeError(c, err)
			return
		}
		a.writeUserCart(c, userID)
		return
	}

	lines, err := a.deps.CartSvc.PriceLines(ctx, req.Lines)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := a.deps.MergeSvc.Merge(ctx, userID, lines, req.AttemptToken); err != nil {
		writeError(c, err)
		return
	}
	a.writeUserCart(c, userID)
}

func (a *api) writeUserCart(c *gin.Context, userID string) {
	v, err := a.deps.CartSvc.Get(c.Request.Context(), identityForUser(userID))
	a.writeCart(c, http.StatusOK, v, err)
}

type bindAddressRequest struct {
	AddressID string `json:"addressId" binding:"required"`
}

func (a *api) bindAddressHandler(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req bindAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "addressId is required")
		return
	}
	if _, err := a.deps.AddressSvc.BindForUser(c.Request.Context(), userID, req.AddressID); err != nil {
		writeError(c, err)
		return
	}
	a.writeUserCart(c, userID)
}

func (a *api) listProductsHandler(c *gin.Context) {
	variants, err := a.deps.ProductSvc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if variants == nil {
		variants = []domain.ProductVariant{}
	}
	c.JSON(http.StatusOK, gin.H{"results": variants, "count": len(variants)})
}

func (a *api) getProductHandler(c *gin.Context) {
	v, err := a.deps.ProductSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
