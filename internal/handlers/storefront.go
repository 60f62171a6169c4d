package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
	"github.com/Skotchmaster/revoshop/internal/shopapi"
	"github.com/Skotchmaster/revoshop/internal/util"
	"github.com/Skotchmaster/revoshop/internal/view"
)

// StorefrontHandler renders the catalog pages backed by the upstream API.
type StorefrontHandler struct {
	Base
	Shop *shopapi.Client
}

func (h *StorefrontHandler) Home(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "home")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	if page < 1 {
		page = 1
	}
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	mode := c.QueryParam("view")
	if mode != "list" {
		mode = "card"
	}

	data := view.HomeData{Page: page, Size: limit, View: mode}
	status := http.StatusOK

	res := h.Shop.Products(ctx, offset, limit)
	switch res.Status {
	case shopapi.StatusOK:
		data.Products = res.Value
		data.HasNext = len(res.Value) == limit
	case shopapi.StatusNotFound:
	default:
		l.Warn("home_error", "status", 502, "error", res.Err)
		data.Unavailable = true
		status = http.StatusBadGateway
	}

	return h.render(c, status, "home", "Home", data)
}

func (h *StorefrontHandler) Product(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product")
	id := c.Param("id")

	p, err := shopapi.ProductOrPlaceholder(h.Shop.Product(ctx, id), id)
	if err != nil {
		l.Warn("product_error", "status", 502, "id", id, "error", err)
		return h.errorPage(c, http.StatusBadGateway, "This product cannot be loaded right now. Please try again later.")
	}

	data := view.ProductData{Product: p}
	if !p.Unavailable {
		data.Related = h.Shop.Related(ctx, id).Or(nil)
	}
	return h.render(c, http.StatusOK, "product", p.Title, data)
}

func (h *StorefrontHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search")

	q := strings.TrimSpace(c.QueryParam("q"))
	categoryID, hasCategory := models.ParseCategoryID(c.QueryParam("category"))

	data := view.SearchData{
		Query:      q,
		Categories: h.Shop.Categories(ctx).Or(nil),
	}

	var res shopapi.Result[[]models.Product]
	switch {
	case hasCategory:
		data.Category = categoryID
		res = h.Shop.ProductsByCategory(ctx, categoryID, q)
	case q != "":
		res = h.Shop.SearchByTitle(ctx, q)
	default:
		return h.render(c, http.StatusOK, "search", "Search", data)
	}

	// a failed search shows no results
	if !res.OK() && !res.NotFound() {
		l.Warn("search_error", "status", 200, "reason", "upstream unavailable", "query", q, "category", categoryID, "error", res.Err)
	}
	data.Products = res.Or(nil)
	return h.render(c, http.StatusOK, "search", "Search", data)
}

func (h *StorefrontHandler) Categories(c echo.Context) error {
	ctx := c.Request().Context()

	res := h.Shop.Categories(ctx)
	if !res.OK() && !res.NotFound() {
		logging.FromContext(ctx).Warn("categories_error", "status", 502, "error", res.Err)
		return h.render(c, http.StatusBadGateway, "categories", "Categories", view.CategoriesData{Unavailable: true})
	}
	return h.render(c, http.StatusOK, "categories", "Categories", view.CategoriesData{Categories: res.Value})
}

func (h *StorefrontHandler) About(c echo.Context) error {
	return h.render(c, http.StatusOK, "about", "About Us", nil)
}

func (h *StorefrontHandler) FAQ(c echo.Context) error {
	return h.render(c, http.StatusOK, "faq", "FAQ", nil)
}
