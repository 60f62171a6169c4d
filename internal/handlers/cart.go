package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/cart"
	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
	"github.com/Skotchmaster/revoshop/internal/shopapi"
	"github.com/Skotchmaster/revoshop/internal/view"
)

type CartHandler struct {
	Base
	Shop *shopapi.Client
}

func (h *CartHandler) GetCart(c echo.Context) error {
	s := h.cart(c)
	return h.render(c, http.StatusOK, "cart", "Cart", view.CartData{Lines: s.Lines(), Subtotal: s.Subtotal()})
}

type cartResponse struct {
	Items    []cart.Line `json:"items"`
	Subtotal float64     `json:"subtotal"`
	Count    int         `json:"count"`
}

// GetCartJSON exposes the same cart for scripts and API clients.
func (h *CartHandler) GetCartJSON(c echo.Context) error {
	s := h.cart(c)
	lines := s.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return c.JSON(http.StatusOK, cartResponse{Items: lines, Subtotal: s.Subtotal(), Count: s.Count()})
}

// AddToCart takes the product id and quantity from the form. The snapshot
// stored in the cart, price included, comes from the catalog.
func (h *CartHandler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart")

	id := strings.TrimSpace(c.FormValue("id"))
	if id == "" {
		l.Warn("add_to_cart_error", "status", 400, "reason", "missing id")
		return echo.NewHTTPError(http.StatusBadRequest, "Product id is required.")
	}
	quantity, err := formQuantity(c, 1)
	if err != nil {
		l.Warn("add_to_cart_error", "status", 400, "reason", "invalid quantity", "id", id)
		return echo.NewHTTPError(http.StatusBadRequest, "Quantity must be at least 1.")
	}

	res := h.Shop.Product(ctx, id)
	switch {
	case res.NotFound():
		l.Warn("add_to_cart_error", "status", 404, "reason", "unknown product", "id", id)
		return echo.NewHTTPError(http.StatusNotFound, "This product is no longer available.")
	case !res.OK():
		l.Warn("add_to_cart_error", "status", 502, "id", id, "error", res.Err)
		return echo.NewHTTPError(http.StatusBadGateway, "This product cannot be added right now. Please try again later.")
	}

	p := res.Value
	if p.ID == "" {
		p.ID = models.ID(id)
	}
	if img := p.FirstImage(); img != "" {
		p.Images = []string{img}
	}

	if err := h.cart(c).AddToCart(ctx, p, quantity); err != nil {
		return h.cartError(c, "add_to_cart_error", err)
	}

	l.Info("cart_item_added", "id", id, "quantity", quantity, "price", p.Price)
	return c.Redirect(http.StatusSeeOther, "/cart")
}

func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.cart")

	id := models.ID(strings.TrimSpace(c.FormValue("id")))
	quantity, err := formQuantity(c, 0)
	if err != nil {
		l.Warn("update_cart_error", "status", 400, "reason", "invalid quantity", "id", id.String())
		return echo.NewHTTPError(http.StatusBadRequest, "Quantity must be at least 1.")
	}

	if err := h.cart(c).UpdateQuantity(ctx, id, quantity); err != nil {
		return h.cartError(c, "update_cart_error", err)
	}
	return c.Redirect(http.StatusSeeOther, "/cart")
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	id := models.ID(strings.TrimSpace(c.FormValue("id")))

	if err := h.cart(c).RemoveFromCart(ctx, id); err != nil {
		return h.cartError(c, "remove_cart_error", err)
	}
	return c.Redirect(http.StatusSeeOther, "/cart")
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	if err := h.cart(c).ClearCart(c.Request().Context()); err != nil {
		return h.cartError(c, "clear_cart_error", err)
	}
	return c.Redirect(http.StatusSeeOther, "/cart")
}

func (h *CartHandler) cartError(c echo.Context, event string, err error) error {
	l := logging.FromContext(c.Request().Context())
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Quantity must be at least 1.")
	case errors.Is(err, cart.ErrInvalidProduct):
		l.Warn(event, "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Product id is required.")
	default:
		l.Error(event, "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Your cart could not be saved. Please try again.")
	}
}

// formQuantity reads the quantity field; def is used when it is absent.
func formQuantity(c echo.Context, def int) (int, error) {
	raw := strings.TrimSpace(c.FormValue("quantity"))
	if raw == "" {
		if def < 1 {
			return 0, cart.ErrInvalidQuantity
		}
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, cart.ErrInvalidQuantity
	}
	return n, nil
}
