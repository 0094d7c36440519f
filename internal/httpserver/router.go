package httpserver

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
	"storefront/internal/guestcart"
	addresssvc "storefront/internal/service/address"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
	"storefront/internal/service/merge"
)

type customerService interface {
	Signup(ctx context.Context, in customersvc.SignupInput) (*customersvc.Session, error)
	Login(ctx context.Context, email, password string) (*customersvc.Session, error)
	LookupByToken(ctx context.Context, token string) (*domain.Customer, error)
	Logout(ctx context.Context, token string) error
	AccessTTLSeconds() int
}

type anonymousService interface {
	Issue(ctx context.Context) (accessToken, anonymousID string, err error)
	LookupByToken(ctx context.Context, token string) (string, error)
	AccessTTLSeconds() int
}

type productService interface {
	List(ctx context.Context) ([]domain.ProductVariant, error)
	Get(ctx context.Context, id string) (*domain.ProductVariant, error)
}

type cartService interface {
	Get(ctx context.Context, id cartsvc.Identity) (*cartsvc.View, error)
	Add(ctx context.Context, id cartsvc.Identity, variantID string, quantity int) (*cartsvc.View, error)
	SetQuantity(ctx context.Context, id cartsvc.Identity, variantID string, quantity int) (*cartsvc.View, error)
	Remove(ctx context.Context, id cartsvc.Identity, variantID string) (*cartsvc.View, error)
	Clear(ctx context.Context, id cartsvc.Identity) (*cartsvc.View, error)
	PriceLines(ctx context.Context, in []cartsvc.LineInput) ([]domain.CartLine, error)
	OpenGuest(ctx context.Context, anonymousID string) (*guestcart.Store, error)
}

type mergeService interface {
	Merge(ctx context.Context, userID string, lines []domain.CartLine, attemptToken string) (*domain.Cart, error)
	MergeGuestCart(ctx context.Context, userID string, src merge.GuestSource) (*domain.Cart, error)
}

type addressService interface {
	Create(ctx context.Context, userID string, in addresssvc.CreateInput) (*domain.ShippingAddress, error)
	List(ctx context.Context, userID string) ([]domain.ShippingAddress, error)
	BindForUser(ctx context.Context, userID, addressID string) (*domain.Cart, error)
}

type orderService interface {
	Finalize(ctx context.Context, userID string) (*domain.Order, error)
	Get(ctx context.Context, userID, orderID string) (*domain.Order, error)
	List(ctx context.Context, userID string) ([]domain.Order, error)
}

// Deps groups the services the router dispatches to.
type Deps struct {
	CustomerSvc  customerService
	AnonymousSvc anonymousService
	ProductSvc   productService
	CartSvc      cartService
	MergeSvc     mergeService
	AddressSvc   addressService
	OrderSvc     orderService
	Currency     string
	CORSOrigins  []string
	// Readiness lists backing services checked by /readyz besides the database.
	Readiness    []ReadinessCheck
}

type api struct {
	logger *log.Logger
	deps   Deps
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", anonymousTokenHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(deps.CORSOrigins) == 0 || (len(deps.CORSOrigins) == 1 && deps.CORSOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = deps.CORSOrigins
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db, deps.Readiness))

	a := &api{logger: logger, deps: deps}

	router.POST("/anonymous/token", a.anonymousTokenHandler)
	router.POST("/oauth/token", a.tokenHandler)
	router.GET("/products", a.listProductsHandler)
	router.GET("/products/:id", a.getProductHandler)

	me := router.Group("/me", identityMiddleware(deps.CustomerSvc, deps.AnonymousSvc))
	me.POST("/signup", a.signupHandler)
	me.GET("", a.meHandler)
	me.POST("/logout", a.logoutHandler)

	me.GET("/cart", a.getCartHandler)
	me.DELETE("/cart", a.clearCartHandler)
	me.POST("/cart/lines", a.addLineHandler)
	me.PATCH("/cart/lines/:variantId", a.updateLineHandler)
	me.DELETE("/cart/lines/:variantId", a.removeLineHandler)
	me.POST("/cart/merge", a.mergeHandler)
	me.PUT("/cart/shipping-address", a.bindAddressHandler)

	me.GET("/addresses", a.listAddressesHandler)
	me.POST("/addresses", a.createAddressHandler)

	me.POST("/orders", a.finalizeHandler)
	me.GET("/orders", a.listOrdersHandler)
	me.GET("/orders/:id", a.getOrderHandler)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "route not found"})
	})
	return router, nil
}
