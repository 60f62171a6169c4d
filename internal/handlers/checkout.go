package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/checkout"
	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/middleware/cartid"
	"github.com/Skotchmaster/revoshop/internal/middleware/session"
	"github.com/Skotchmaster/revoshop/internal/validation"
	"github.com/Skotchmaster/revoshop/internal/view"
)

type CheckoutHandler struct {
	Base
	Checkout *checkout.Service
}

func (h *CheckoutHandler) GetCheckout(c echo.Context) error {
	s := h.cart(c)
	if s.IsEmpty() {
		return h.render(c, http.StatusOK, "checkout_empty", "Checkout", nil)
	}
	return h.render(c, http.StatusOK, "checkout", "Checkout", view.CheckoutData{Lines: s.Lines(), Subtotal: s.Subtotal()})
}

func (h *CheckoutHandler) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "place.order")

	claims := session.Current(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Please sign in to check out.")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		l.Error("place_order_error", "status", 401, "reason", "bad subject", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Please sign in to check out.")
	}

	s := h.cart(c)
	if s.IsEmpty() {
		return c.Redirect(http.StatusSeeOther, "/cart")
	}

	var form checkout.ShippingDetails
	if err := c.Bind(&form); err != nil {
		l.Warn("place_order_error", "status", 400, "reason", "bind", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data.")
	}
	if err := c.Validate(&form); err != nil {
		l.Warn("place_order_error", "status", 422, "reason", "invalid shipping details")
		return h.render(c, http.StatusUnprocessableEntity, "checkout", "Checkout", view.CheckoutData{
			Lines:    s.Lines(),
			Subtotal: s.Subtotal(),
			Form:     form,
			Errors:   validation.FromError(err, &form),
		})
	}

	order, err := h.Checkout.PlaceOrder(ctx, checkout.Customer{UserID: userID, Email: claims.Email}, cartid.FromContext(c), s.Lines(), form)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return c.Redirect(http.StatusSeeOther, "/cart")
	case errors.Is(err, checkout.ErrInvalidShipping):
		return h.render(c, http.StatusUnprocessableEntity, "checkout", "Checkout", view.CheckoutData{
			Lines:    s.Lines(),
			Subtotal: s.Subtotal(),
			Form:     form,
			Errors:   validation.FromError(err, &form),
		})
	case err != nil:
		l.Error("place_order_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Your order could not be placed. Please try again.")
	}

	if err := s.ClearCart(ctx); err != nil {
		l.Error("place_order_error", "reason", "clear cart", "order_id", order.ID.String(), "error", err)
	}

	l.Info("order_placed", "order_id", order.ID.String())
	return c.Redirect(http.StatusFound, "/checkout/success?order="+order.ID.String())
}

func (h *CheckoutHandler) Success(c echo.Context) error {
	ctx := c.Request().Context()
	data := view.SuccessData{}

	if claims := session.Current(c); claims != nil {
		userID, uerr := uuid.Parse(claims.Subject)
		orderID, oerr := uuid.Parse(c.QueryParam("order"))
		if uerr == nil && oerr == nil {
			order, err := h.Checkout.Order(ctx, userID, orderID)
			if err != nil && !errors.Is(err, checkout.ErrOrderNotFound) {
				logging.FromContext(ctx).Warn("order_lookup_error", "order_id", orderID.String(), "error", err)
			}
			data.Order = order
		}
	}
	return h.render(c, http.StatusOK, "success", "Order placed", data)
}
