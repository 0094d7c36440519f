package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/guestcart"
	"storefront/internal/repository/memory"
	addresssvc "storefront/internal/service/address"
	anonymoussvc "storefront/internal/service/anonymous"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
	"storefront/internal/service/merge"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
)

func logDiscard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// stubCustomerSvc signs in with a fixed token table.
type stubCustomerSvc struct {
	byToken   map[string]*domain.Customer
	session   *customersvc.Session
	loginErr  error
	signErr   error
	loggedOut []string
}

func (s *stubCustomerSvc) Signup(_ context.Context, in customersvc.SignupInput) (*customersvc.Session, error) {
	if s.signErr != nil {
		return nil, s.signErr
	}
	return s.session, nil
}

func (s *stubCustomerSvc) Login(_ context.Context, _, _ string) (*customersvc.Session, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.session, nil
}

func (s *stubCustomerSvc) LookupByToken(_ context.Context, token string) (*domain.Customer, error) {
	if c, ok := s.byToken[token]; ok {
		return c, nil
	}
	return nil, customersvc.ErrInvalidToken
}

func (s *stubCustomerSvc) Logout(_ context.Context, token string) error {
	s.loggedOut = append(s.loggedOut, token)
	return nil
}

func (s *stubCustomerSvc) AccessTTLSeconds() int { return 3600 }

type fixture struct {
	router    *gin.Engine
	store     *memory.Store
	guests    *guestcart.MemoryStorage
	anon      *anonymoussvc.Service
	customers *stubCustomerSvc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	store.AddVariant(domain.ProductVariant{ID: "A", Key: "tee", ProductName: "Tee", PriceCents: 500})
	store.AddVariant(domain.ProductVariant{ID: "B", Key: "mug", ProductName: "Mug", PriceCents: 1000})
	guests := guestcart.NewMemoryStorage()
	anon := anonymoussvc.New("test-secret", time.Hour)
	me := &domain.Customer{ID: "u1", Email: "me@example.com"}
	customers := &stubCustomerSvc{
		byToken: map[string]*domain.Customer{
			"user-token":  me,
			"other-token": {ID: "u2", Email: "other@example.com"},
		},
		session: &customersvc.Session{Customer: me, AccessToken: "user-token", RefreshToken: "refresh"},
	}

	router, err := buildRouter(logDiscard(), nil, Deps{
		CustomerSvc:  customers,
		AnonymousSvc: anon,
		ProductSvc:   productsvc.New(store.Variants()),
		CartSvc:      cartsvc.New(store.Carts(), store.Variants(), guests, nil),
		MergeSvc:     merge.New(store.Carts(), store.Variants(), nil),
		AddressSvc:   addresssvc.New(store.Addresses(), store.Carts(), nil),
		OrderSvc:     ordersvc.New(store.Orders(), nil, nil),
		Currency:     "EUR",
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &fixture{router: router, store: store, guests: guests, anon: anon, customers: customers}
}

func (f *fixture) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	expectStatus(t, rec, http.StatusOK)
}

func TestReadyz_NoDB(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/readyz", "", "")
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestIdentityMiddleware_RejectsUnknownToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/me/cart", "nope", "")
	expectStatus(t, rec, http.StatusUnauthorized)

	var body errorBody
	decode(t, rec, &body)
	if body.Error != "invalid_token" || body.Retryable {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestCart_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/me/cart", "", "")
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"":             "",
	}
	for in, want := range cases {
		if got := bearerToken(in); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProducts(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/products", "", "")
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 2 {
		t.Fatalf("expected 2 products, got %d", list.Count)
	}

	rec = f.do(t, http.MethodGet, "/products/missing", "", "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/nowhere", "", "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/me/cart", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q (status %d)", got, rec.Code)
	}
}
