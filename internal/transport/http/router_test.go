package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/revoshop/internal/auth"
	"github.com/Skotchmaster/revoshop/internal/cart"
	"github.com/Skotchmaster/revoshop/internal/checkout"
	"github.com/Skotchmaster/revoshop/internal/db"
	"github.com/Skotchmaster/revoshop/internal/events"
	"github.com/Skotchmaster/revoshop/internal/handlers"
	"github.com/Skotchmaster/revoshop/internal/middleware/cartid"
	"github.com/Skotchmaster/revoshop/internal/middleware/csrf"
	"github.com/Skotchmaster/revoshop/internal/registry"
	"github.com/Skotchmaster/revoshop/internal/search"
	"github.com/Skotchmaster/revoshop/internal/shopapi"
	"github.com/Skotchmaster/revoshop/internal/validation"
	"github.com/Skotchmaster/revoshop/internal/view"
)

const productsJSON = `[
	{"id":1,"title":"Classic Red Hoodie","price":45,"images":["https://i.imgur.com/a.jpg"],"category":{"id":1,"name":"Clothes"}},
	{"id":2,"title":"Blue Cap","price":12.5,"images":[]}
]`

type upstream struct {
	mu    sync.Mutex
	down  bool
	calls []string
}

func (u *upstream) record(r *http.Request) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, r.Method+" "+r.URL.Path)
	return u.down
}

func (u *upstream) setDown(v bool) {
	u.mu.Lock()
	u.down = v
	u.mu.Unlock()
}

func (u *upstream) called(call string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, c := range u.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (u *upstream) serve(body string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if u.record(r) {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newUpstream(t *testing.T) (*shopapi.Client, *upstream) {
	t.Helper()
	up := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/products", up.serve(productsJSON, http.StatusOK))
	mux.HandleFunc("GET /api/v1/products/1", up.serve(`{"id":1,"title":"Classic Red Hoodie","price":45,"images":[]}`, http.StatusOK))
	mux.HandleFunc("GET /api/v1/products/2", up.serve(`{"id":2,"title":"Blue Cap","price":12.5,"images":[]}`, http.StatusOK))
	mux.HandleFunc("GET /api/v1/products/1/related", up.serve(productsJSON, http.StatusOK))
	mux.HandleFunc("GET /api/v1/products/404", up.serve(`{"message":"not found"}`, http.StatusNotFound))
	mux.HandleFunc("GET /api/v1/products/500", up.serve("boom", http.StatusInternalServerError))
	mux.HandleFunc("GET /api/v1/categories", up.serve(`[{"id":1,"name":"Clothes","slug":"clothes"}]`, http.StatusOK))
	mux.HandleFunc("POST /api/v1/products", up.serve(`{"id":99,"title":"New","price":10,"images":[]}`, http.StatusCreated))
	mux.HandleFunc("PUT /api/v1/products/99", up.serve(`{"id":99,"title":"New","price":10,"images":[]}`, http.StatusOK))
	mux.HandleFunc("PUT /api/v1/products/404", up.serve(`{"message":"not found"}`, http.StatusNotFound))
	mux.HandleFunc("DELETE /api/v1/products/99", up.serve(`true`, http.StatusOK))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := shopapi.NewWithHTTPClient(srv.URL+"/api/v1/", srv.Client())
	require.NoError(t, err)
	return client, up
}

type app struct {
	e      *echo.Echo
	up     *upstream
	events *events.Recorder

	mu  sync.Mutex
	jar map[string]*http.Cookie
}

func newApp(t *testing.T) *app {
	t.Helper()
	ctx := context.Background()

	gdb, err := db.Open(ctx, "sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	repo := &auth.GormRepo{DB: gdb}
	require.NoError(t, auth.SeedUsers(ctx, repo, auth.DefaultUsers))

	rec := &events.Recorder{}
	authSvc := &auth.Service{Repo: repo, Secret: []byte("router-test-secret"), TTL: time.Hour, Publisher: rec}
	shop, up := newUpstream(t)
	renderer, err := view.New()
	require.NoError(t, err)

	reg := registry.New()
	checkoutSvc := &checkout.Service{DB: gdb, Publisher: rec, Validator: validation.New()}
	base := handlers.Base{Carts: cart.NewMemoryStorage()}
	d := &Deps{
		DB:       gdb,
		Renderer: renderer,
		CartID:   cartid.New([]byte("cart-secret"), time.Hour, false),
		Sessions: authSvc,
		CSRF:     csrf.DefaultConfig(),

		ProductsAPI: &handlers.ProductsAPIHandler{Registry: reg, Search: search.Fallback{Registry: reg}},
		Storefront:  &handlers.StorefrontHandler{Base: base, Shop: shop},
		Cart:        &handlers.CartHandler{Base: base, Shop: shop},
		Checkout:    &handlers.CheckoutHandler{Base: base, Checkout: checkoutSvc},
		Admin:       &handlers.AdminHandler{Base: base, Shop: shop},
		Auth:        &handlers.AuthHandler{Base: base, Auth: authSvc},
	}

	e := echo.New()
	Use(e, d, slog.New(slog.NewTextHandler(io.Discard, nil)))
	Register(e, d)

	return &app{e: e, up: up, events: rec, jar: map[string]*http.Cookie{}}
}

// do sends a request carrying the app's cookies. Form posts get the CSRF
// token and a same-origin header the way a browser form would.
func (a *app) do(method, target string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		a.mu.Lock()
		if ck, ok := a.jar["XSRF-TOKEN"]; ok {
			form.Set("csrf_token", ck.Value)
		}
		a.mu.Unlock()
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	req.Header.Set("Origin", "http://example.com")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	a.mu.Lock()
	for _, ck := range a.jar {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	a.mu.Unlock()

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	a.mu.Lock()
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(a.jar, ck.Name)
			continue
		}
		a.jar[ck.Name] = ck
	}
	a.mu.Unlock()
	return rec
}

func (a *app) get(target string) *httptest.ResponseRecorder {
	return a.do(http.MethodGet, target, nil, nil)
}

func (a *app) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return a.do(http.MethodPost, target, form, nil)
}

func (a *app) login(t *testing.T, email, password string) {
	t.Helper()
	a.get("/login")
	rec := a.post("/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
}

func (a *app) hasCookie(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.jar[name]
	return ok
}

func TestHealth(t *testing.T) {
	t.Parallel()
	a := newApp(t)

	assert.Equal(t, http.StatusNoContent, a.get("/health/live").Code)
	assert.Equal(t, http.StatusNoContent, a.get("/health/ready").Code)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealth_NotReady(t *testing.T) {
	t.Parallel()
	e := echo.New()
	Register(e, &Deps{Pingers: []Pinger{downPinger{}}})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProductsAPI_Scenario(t *testing.T) {
	t.Parallel()
	a := newApp(t)

	jsonReq := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/products", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		a.e.ServeHTTP(rec, req)
		return rec
	}

	rec := jsonReq(http.MethodPost, `{"name":"Test Product","price":99.99}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	rec = jsonReq(http.MethodPut, `{"id":"`+id+`","price":150}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+id+`","name":"Test Product","price":150}`, rec.Body.String())

	rec = jsonReq(http.MethodGet, "")
	assert.JSONEq(t, `[{"id":"`+id+`","name":"Test Product","price":150}]`, rec.Body.String())

	rec = jsonReq(http.MethodPut, `{"id":"missing","price":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())

	rec = jsonReq(http.MethodDelete, `{"id":"`+id+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = jsonReq(http.MethodGet, "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestStorefrontPages(t *testing.T) {
	t.Parallel()
	a := newApp(t)

	tests := []struct {
		name     string
		target   string
		wantCode int
		want     []string
	}{
		{name: "home", target: "/", wantCode: http.StatusOK, want: []string{"Classic Red Hoodie", "$45.00", "Blue Cap"}},
		{name: "trailing slash", target: "/about/", wantCode: http.StatusOK},
		{name: "product", target: "/products/1", wantCode: http.StatusOK, want: []string{"Classic Red Hoodie"}},
		{name: "missing product", target: "/products/404", wantCode: http.StatusOK, want: []string{"This product is no longer available."}},
		{name: "failing product", target: "/products/500", wantCode: http.StatusBadGateway},
		{name: "search by title", target: "/search?q=hoodie", wantCode: http.StatusOK, want: []string{"Classic Red Hoodie"}},
		{name: "search form", target: "/search", wantCode: http.StatusOK},
		{name: "categories", target: "/categories", wantCode: http.StatusOK, want: []string{"Clothes"}},
		{name: "faq", target: "/faq", wantCode: http.StatusOK},
		{name: "unknown page", target: "/nope", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := a.get(tt.target)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
			for _, s := range tt.want {
				assert.Contains(t, rec.Body.String(), s)
			}
		})
	}
}

func TestStorefront_UpstreamDown(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	a.up.setDown(true)

	assert.Equal(t, http.StatusBadGateway, a.get("/").Code)
	assert.Equal(t, http.StatusBadGateway, a.get("/categories").Code)

	for _, target := range []string{"/search?q=hat", "/search?category=1&q=hat"} {
		rec := a.get(target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "No products match your search.", target)
		assert.NotContains(t, rec.Body.String(), `class="card"`, target)
	}
}

func TestCartFlow(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	a.get("/")
	require.True(t, a.hasCookie(cartid.CookieName))

	rec := a.post("/cart/add", url.Values{"id": {"1"}, "quantity": {"2"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get(echo.HeaderLocation))

	a.post("/cart/add", url.Values{"id": {"2"}})

	var got struct {
		Items []struct {
			ID       string `json:"id"`
			Quantity int    `json:"quantity"`
		} `json:"items"`
		Subtotal float64 `json:"subtotal"`
		Count    int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(a.get("/api/cart").Body.Bytes(), &got))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "1", got.Items[0].ID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "2", got.Items[1].ID)
	assert.InDelta(t, 102.5, got.Subtotal, 0.001)
	assert.Equal(t, 3, got.Count)

	assert.Equal(t, http.StatusBadRequest, a.post("/cart/update", url.Values{"id": {"1"}, "quantity": {"0"}}).Code)
	assert.Equal(t, http.StatusBadRequest, a.post("/cart/update", url.Values{"id": {"1"}}).Code)
	assert.Equal(t, http.StatusSeeOther, a.post("/cart/update", url.Values{"id": {"1"}, "quantity": {"1"}}).Code)
	assert.Equal(t, http.StatusSeeOther, a.post("/cart/remove", url.Values{"id": {"2"}}).Code)

	rec = a.get("/cart")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Classic Red Hoodie")
	assert.NotContains(t, rec.Body.String(), "Blue Cap")

	assert.Equal(t, http.StatusSeeOther, a.post("/cart/clear", nil).Code)
	assert.Contains(t, a.get("/cart").Body.String(), "Your cart is empty.")
}

func TestCart_PriceComesFromCatalog(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	a.get("/")

	rec := a.post("/cart/add", url.Values{"id": {"1"}, "title": {"Free Hoodie"}, "price": {"0.01"}, "quantity": {"2"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var got struct {
		Items []struct {
			Title string  `json:"title"`
			Price float64 `json:"price"`
		} `json:"items"`
		Subtotal float64 `json:"subtotal"`
	}
	require.NoError(t, json.Unmarshal(a.get("/api/cart").Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Classic Red Hoodie", got.Items[0].Title)
	assert.InDelta(t, 45, got.Items[0].Price, 0.001)
	assert.InDelta(t, 90, got.Subtotal, 0.001)
}

func TestCart_AddRejectsUnknownProduct(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	a.get("/")

	assert.Equal(t, http.StatusNotFound, a.post("/cart/add", url.Values{"id": {"404"}, "price": {"1"}}).Code)
	assert.Equal(t, http.StatusBadGateway, a.post("/cart/add", url.Values{"id": {"500"}}).Code)
	assert.Equal(t, http.StatusBadRequest, a.post("/cart/add", url.Values{"id": {""}}).Code)
	assert.JSONEq(t, `{"items":[],"subtotal":0,"count":0}`, a.get("/api/cart").Body.String())
}

func TestCart_RejectsMissingCSRF(t *testing.T) {
	t.Parallel()
	a := newApp(t)
	a.get("/")

	req := httptest.NewRequest(http.MethodPost, "/cart/add", strings.NewReader("id=1&price=1"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	t.Parallel()
	a := newApp(t)

	rec := a.get("/checkout")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Fcheckout", rec.Header().Get(echo.HeaderLocation))

	a.login(t, "john@example.com", "password123")

	rec = a.get("/checkout")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your cart is empty")

	a.post("/cart/add", url.Values{"id": {"1"}, "quantity": {"2"}})

	rec = a.post("/checkout", url.Values{"address": {"1 Main St"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "This field is required.")

	rec = a.post("/checkout", url.Values{
		"address": {"1 Main St"}, "city": {"Springfield"}, "state": {"IL"},
		"zipCode": {"62701"}, "country": {"US"}, "phone": {"555-0100"},
	})
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	loc := rec.Header().Get(echo.HeaderLocation)
	assert.True(t, strings.HasPrefix(loc, "/checkout/success?order="), loc)

	rec = a.get(loc)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Order Placed Successfully!")
	assert.Contains(t, rec.Body.String(), "$90.00")

	assert.JSONEq(t, `{"items":[],"subtotal":0,"count":0}`, a.get("/api/cart").Body.String())

	var topics []string
	for _, m := range a.events.Messages() {
		topics = append(topics, m.Topic)
	}
	assert.Contains(t, topics, events.UserTopic)
	assert.Contains(t, topics, events.CartTopic)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantLoc  string
		wantBody string
	}{
		{
			name:     "success follows callback",
			form:     url.Values{"email": {"john@example.com"}, "password": {"password123"}, "callbackUrl": {"/checkout"}},
			wantCode: http.StatusFound,
			wantLoc:  "/checkout",
		},
		{
			name:     "external callback is ignored",
			form:     url.Values{"email": {"john@example.com"}, "password": {"password123"}, "callbackUrl": {"https://evil.example/"}},
			wantCode: http.StatusFound,
			wantLoc:  "/",
		},
		{
			name:     "wrong password",
			form:     url.Values{"email": {"john@example.com"}, "password": {"nope"}},
			wantCode: http.StatusUnauthorized,
			wantBody: "Invalid email or password",
		},
		{
			name:     "invalid email",
			form:     url.Values{"email": {"john"}, "password": {"x"}},
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "Enter a valid email address.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newApp(t)
			a.get("/login")

			rec := a.post("/login", tt.form)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, rec.Header().Get(echo.HeaderLocation))
				assert.True(t, a.hasCookie(auth.SessionCookie))
			} else {
				assert.False(t, a.hasCookie(auth.SessionCookie))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSessionAndLogout(t *testing.T) {
	t.Parallel()
	a := newApp(t)

	assert.JSONEq(t, `{}`, a.get("/api/auth/session").Body.String())

	a.login(t, "admin@example.com", "admin123")

	var s struct {
		User struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
		Expires time.Time `json:"expires"`
	}
	require.NoError(t, json.Unmarshal(a.get("/api/auth/session").Body.Bytes(), &s))
	assert.Equal(t, "Admin User", s.User.Name)
	assert.Equal(t, "admin@example.com", s.User.Email)
	assert.Equal(t, auth.RoleAdmin, s.User.Role)
	assert.True(t, s.Expires.After(time.Now()))

	a.mu.Lock()
	token := a.jar[auth.SessionCookie].Value
	a.mu.Unlock()

	rec := a.post("/logout", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.False(t, a.hasCookie(auth.SessionCookie))

	// the revoked token no longer resolves even if replayed
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	replay := httptest.NewRecorder()
	a.e.ServeHTTP(replay, req)
	assert.JSONEq(t, `{}`, replay.Body.String())
}

func TestAdmin(t *testing.T) {
	t.Parallel()

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		rec := newApp(t).get("/admin")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login?callbackUrl=%2Fadmin", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("regular user", func(t *testing.T) {
		t.Parallel()
		a := newApp(t)
		a.login(t, "john@example.com", "password123")
		rec := a.get("/admin")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/?error=unauthorized", rec.Header().Get(echo.HeaderLocation))
		assert.Contains(t, a.get("/?error=unauthorized").Body.String(), "You are not authorized to view that page.")
	})

	t.Run("admin", func(t *testing.T) {
		t.Parallel()
		a := newApp(t)
		a.login(t, "admin@example.com", "admin123")

		rec := a.get("/admin")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Classic Red Hoodie")

		valid := url.Values{
			"title": {"New"}, "price": {"10"}, "description": {"d"},
			"categoryId": {"1"}, "images": {"https://x.example/y.jpg"},
		}

		rec = a.post("/admin/products", valid)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin?notice=created", rec.Header().Get(echo.HeaderLocation))
		assert.True(t, a.up.called("POST /api/v1/products"))

		rec = a.post("/admin/products", url.Values{"title": {"New"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "This field is required.")

		rec = a.post("/admin/products/99", valid)
		assert.Equal(t, "/admin?notice=updated", rec.Header().Get(echo.HeaderLocation))

		rec = a.post("/admin/products/404", valid)
		assert.Equal(t, "/admin?failed=missing", rec.Header().Get(echo.HeaderLocation))

		rec = a.post("/admin/products/99/delete", nil)
		assert.Equal(t, "/admin?notice=deleted", rec.Header().Get(echo.HeaderLocation))
		assert.True(t, a.up.called("DELETE /api/v1/products/99"))

		assert.Contains(t, a.get("/admin?notice=deleted").Body.String(), "Product deleted.")
	})
}
