package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/money"
	addresssvc "storefront/internal/service/address"
)

type orderResponse struct {
	domain.Order
	TotalFormatted string `json:"totalFormatted"`
}

func (a *api) toOrderResponse(o domain.Order) orderResponse {
	if o.Lines == nil {
		o.Lines = []domain.OrderLine{}
	}
	return orderResponse{Order: o, TotalFormatted: money.FormatCents(o.TotalCents, a.deps.Currency)}
}

func (a *api) finalizeHandler(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	o, err := a.deps.OrderSvc.Finalize(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.toOrderResponse(*o))
}

func (a *api) listOrdersHandler(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	orders, err := a.deps.OrderSvc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, a.toOrderResponse(o))
	}
	c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
}

func (a *api) getOrderHandler(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	o, err := a.deps.OrderSvc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.toOrderResponse(*o))
}

func (a *api) listAddressesHandler(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	addrs, err := a.deps.AddressSvc.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if addrs == nil {
		addrs = []domain.ShippingAddress{}
	}
	c.JSON(http.StatusOK, gin.H{"results": addrs, "count": len(addrs)})
}

func (a *api) createAddressHandler(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req addresssvc.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, "invalid address payload")
		return
	}
	addr, err := a.deps.AddressSvc.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addr)
}
