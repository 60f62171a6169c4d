package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/registry"
	"github.com/Skotchmaster/revoshop/internal/search"
	"github.com/Skotchmaster/revoshop/internal/util"
)

const (
	msgInvalidRequest = "Invalid request data"
	msgNotFound       = "Not found"
)

// ProductsAPIHandler serves the JSON product registry under /api/products.
type ProductsAPIHandler struct {
	Registry *registry.Registry
	Search   search.Searcher
}

func (h *ProductsAPIHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Registry.List())
}

func (h *ProductsAPIHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create.product")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		l.Warn("create_product_error", "status", 400, "reason", "read body", "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidRequest})
	}

	rec, err := h.Registry.Create(ctx, body)
	if err != nil {
		l.Warn("create_product_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidRequest})
	}

	l.Info("product_created", "id", rec.ID())
	return c.JSON(http.StatusCreated, rec)
}

func (h *ProductsAPIHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.product")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		l.Warn("update_product_error", "status", 400, "reason", "read body", "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidRequest})
	}

	rec, err := h.Registry.Update(ctx, body)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		l.Warn("update_product_error", "status", 404, "error", err)
		return c.JSON(http.StatusNotFound, echo.Map{"error": msgNotFound})
	case err != nil:
		l.Warn("update_product_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msgInvalidRequest})
	}

	l.Info("product_updated", "id", rec.ID())
	return c.JSON(http.StatusOK, rec)
}

// Delete always answers 200. An unreadable body is reported next to the
// success flag.
func (h *ProductsAPIHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete.product")

	var req registry.Record
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req == nil {
		l.Warn("delete_product_error", "status", 200, "reason", "invalid body", "error", err)
		return c.JSON(http.StatusOK, echo.Map{"success": true, "error": msgInvalidRequest})
	}

	id := req.ID()
	removed := h.Registry.Delete(ctx, id)
	l.Info("product_deleted", "id", id, "removed", removed)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

type searchResponse struct {
	Total    int64             `json:"total"`
	Products []registry.Record `json:"products"`
}

func (h *ProductsAPIHandler) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.products")

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		l.Warn("search_error", "status", 400, "reason", "empty query")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query parameter q is required"})
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	total, hits, err := h.Search.Search(ctx, q, from, size)
	if err != nil {
		l.Error("search_error", "status", 502, "error", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "search unavailable"})
	}
	if hits == nil {
		hits = []registry.Record{}
	}

	return c.JSON(http.StatusOK, searchResponse{Total: total, Products: hits})
}
