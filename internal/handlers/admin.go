package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/shopapi"
	"github.com/Skotchmaster/revoshop/internal/validation"
	"github.com/Skotchmaster/revoshop/internal/view"
)

const adminListLimit = 50

var adminNotices = map[string]string{
	"created": "Product created.",
	"updated": "Product updated.",
	"deleted": "Product deleted.",
}

var adminFailures = map[string]string{
	"create":  "The product could not be created. Please try again.",
	"update":  "The product could not be updated. Check the fields and try again.",
	"delete":  "The product could not be deleted. Please try again.",
	"missing": "That product no longer exists.",
}

type AdminHandler struct {
	Base
	Shop *shopapi.Client
}

func (h *AdminHandler) Dashboard(c echo.Context) error {
	return h.dashboard(c, http.StatusOK, view.ProductForm{}, nil)
}

func (h *AdminHandler) dashboard(c echo.Context, status int, form view.ProductForm, errs validation.FieldErrors) error {
	ctx := c.Request().Context()

	data := view.AdminData{
		Categories: h.Shop.Categories(ctx).Or(nil),
		Form:       form,
		Errors:     errs,
	}
	res := h.Shop.Products(ctx, 0, adminListLimit)
	if res.OK() {
		data.Products = res.Value
	} else if !res.NotFound() {
		logging.FromContext(ctx).Warn("admin_products_error", "error", res.Err)
		data.Unavailable = true
	}

	p := &view.Page{Title: "Admin", Data: data}
	p.Notice = adminNotices[c.QueryParam("notice")]
	if msg, ok := adminFailures[c.QueryParam("failed")]; ok {
		p.Error = msg
	}
	return h.renderPage(c, status, "admin", p)
}

func (h *AdminHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create.product")

	var form view.ProductForm
	if err := c.Bind(&form); err != nil {
		l.Warn("admin_create_error", "status", 422, "reason", "bind", "error", err)
		return h.dashboard(c, http.StatusUnprocessableEntity, form, validation.FieldErrors{"_": "Invalid form data."})
	}
	in := form.Input()
	if err := c.Validate(&in); err != nil {
		l.Warn("admin_create_error", "status", 422, "reason", "invalid product")
		return h.dashboard(c, http.StatusUnprocessableEntity, form, validation.FromError(err, &in))
	}

	p, err := h.Shop.CreateProduct(ctx, in)
	if err != nil {
		l.Error("admin_create_error", "status", 502, "error", err)
		return c.Redirect(http.StatusSeeOther, "/admin?failed=create")
	}

	l.Info("admin_product_created", "id", p.ID.String())
	return c.Redirect(http.StatusSeeOther, "/admin?notice=created")
}

func (h *AdminHandler) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update.product")
	id := c.Param("id")

	var form view.ProductForm
	if err := c.Bind(&form); err != nil {
		l.Warn("admin_update_error", "status", 303, "reason", "bind", "id", id, "error", err)
		return c.Redirect(http.StatusSeeOther, "/admin?failed=update")
	}
	in := form.Input()
	if err := c.Validate(&in); err != nil {
		l.Warn("admin_update_error", "status", 303, "reason", "invalid product", "id", id, "error", err)
		return c.Redirect(http.StatusSeeOther, "/admin?failed=update")
	}

	if _, err := h.Shop.UpdateProduct(ctx, id, in); err != nil {
		if errors.Is(err, shopapi.ErrNotFound) {
			return c.Redirect(http.StatusSeeOther, "/admin?failed=missing")
		}
		l.Error("admin_update_error", "status", 502, "id", id, "error", err)
		return c.Redirect(http.StatusSeeOther, "/admin?failed=update")
	}

	l.Info("admin_product_updated", "id", id)
	return c.Redirect(http.StatusSeeOther, "/admin?notice=updated")
}

func (h *AdminHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete.product")
	id := c.Param("id")

	if err := h.Shop.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, shopapi.ErrNotFound) {
			return c.Redirect(http.StatusSeeOther, "/admin?failed=missing")
		}
		l.Error("admin_delete_error", "status", 502, "id", id, "error", err)
		return c.Redirect(http.StatusSeeOther, "/admin?failed=delete")
	}

	l.Info("admin_product_deleted", "id", id)
	return c.Redirect(http.StatusSeeOther, "/admin?notice=deleted")
}
