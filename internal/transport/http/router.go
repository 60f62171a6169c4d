package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/Skotchmaster/revoshop/internal/db"
	"github.com/Skotchmaster/revoshop/internal/handlers"
	"github.com/Skotchmaster/revoshop/internal/middleware/cartid"
	"github.com/Skotchmaster/revoshop/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/revoshop/internal/middleware/logging"
	"github.com/Skotchmaster/revoshop/internal/middleware/session"
	"github.com/Skotchmaster/revoshop/internal/validation"
	"github.com/Skotchmaster/revoshop/internal/view"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	DB       *gorm.DB
	Pingers  []Pinger
	Renderer *view.Renderer
	CartID   *cartid.Codec
	Sessions session.Parser
	CSRF     csrf.Config

	SecureCookie bool

	ProductsAPI *handlers.ProductsAPIHandler
	Storefront  *handlers.StorefrontHandler
	Cart        *handlers.CartHandler
	Checkout    *handlers.CheckoutHandler
	Admin       *handlers.AdminHandler
	Auth        *handlers.AuthHandler
}

// Use installs the middleware chain. Request logging comes first so every
// later layer logs with the request's logger.
func Use(e *echo.Echo, d *Deps, logger *slog.Logger) {
	if d.Renderer != nil {
		e.Renderer = d.Renderer
	}
	e.Validator = validation.New()
	e.HTTPErrorHandler = handlers.ErrorHandler(e, &d.Storefront.Base)

	e.Pre(ecM.RemoveTrailingSlash())
	e.Use(ecM.Recover())
	e.Use(ecM.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(ecM.Secure())
	e.Use(csrf.Middleware(d.CSRF))
	e.Use(d.CartID.Middleware())
	e.Use(session.Middleware(d.Sessions, d.SecureCookie))
	e.Use(session.Gate())
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/health/ready", func(c echo.Context) error {
		ctx := c.Request().Context()
		if d.DB != nil {
			if err := db.Ping(ctx, d.DB); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "db unavailable"})
			}
		}
		for _, p := range d.Pingers {
			if err := p.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "dependency unavailable"})
			}
		}
		return c.NoContent(http.StatusNoContent)
	})

	api := e.Group("/api")

	products := api.Group("/products")
	products.GET("", d.ProductsAPI.List)
	products.POST("", d.ProductsAPI.Create)
	products.PUT("", d.ProductsAPI.Update)
	products.DELETE("", d.ProductsAPI.Delete)
	products.GET("/search", d.ProductsAPI.SearchProducts)

	api.GET("/auth/session", d.Auth.Session)
	api.GET("/cart", d.Cart.GetCartJSON)

	e.GET("/", d.Storefront.Home)
	e.GET("/products/:id", d.Storefront.Product)
	e.GET("/search", d.Storefront.Search)
	e.GET("/categories", d.Storefront.Categories)
	e.GET("/about", d.Storefront.About)
	e.GET("/faq", d.Storefront.FAQ)

	e.GET("/login", d.Auth.LoginPage)
	e.POST("/login", d.Auth.Login)
	e.POST("/logout", d.Auth.Logout)

	cart := e.Group("/cart")
	cart.GET("", d.Cart.GetCart)
	cart.POST("/add", d.Cart.AddToCart)
	cart.POST("/update", d.Cart.UpdateQuantity)
	cart.POST("/remove", d.Cart.RemoveFromCart)
	cart.POST("/clear", d.Cart.ClearCart)

	checkout := e.Group("/checkout", session.RequireAuth)
	checkout.GET("", d.Checkout.GetCheckout)
	checkout.POST("", d.Checkout.PlaceOrder)
	checkout.GET("/success", d.Checkout.Success)

	admin := e.Group("/admin", session.RequireAdmin)
	admin.GET("", d.Admin.Dashboard)
	admin.POST("/products", d.Admin.CreateProduct)
	admin.POST("/products/:id", d.Admin.UpdateProduct)
	admin.POST("/products/:id/delete", d.Admin.DeleteProduct)
}
