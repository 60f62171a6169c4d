package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/cart"
	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/middleware/cartid"
	"github.com/Skotchmaster/revoshop/internal/view"
)

// Base carries what every rendered page needs.
type Base struct {
	Carts cart.Storage
}

func (b *Base) cart(c echo.Context) *cart.Store {
	return cart.Load(c.Request().Context(), b.Carts, cart.Key(cartid.FromContext(c)))
}

func (b *Base) render(c echo.Context, status int, name, title string, data any) error {
	return b.renderPage(c, status, name, &view.Page{Title: title, Data: data})
}

func (b *Base) renderPage(c echo.Context, status int, name string, p *view.Page) error {
	if p.Query == "" {
		p.Query = c.QueryParam("q")
	}
	if b.Carts != nil {
		p.CartCount = b.cart(c).Count()
	}
	return c.Render(status, name, p)
}

func (b *Base) errorPage(c echo.Context, status int, msg string) error {
	return b.render(c, status, "error", http.StatusText(status), view.ErrorData{Status: status, Message: msg})
}

// ErrorHandler renders HTML error pages for browsers and falls back to
// echo's JSON errors for /api/ and JSON clients.
func ErrorHandler(e *echo.Echo, base *Base) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		req := c.Request()
		if e.Renderer == nil || strings.HasPrefix(req.URL.Path, "/api/") ||
			strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		status := http.StatusInternalServerError
		msg := "Something went wrong. Please try again."
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}
		if status >= 500 {
			logging.FromContext(req.Context()).Error("unhandled_error", "status", status, "error", err)
		}
		if rerr := base.errorPage(c, status, msg); rerr != nil {
			e.DefaultHTTPErrorHandler(err, c)
		}
	}
}
