package session

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/logging"
)

var gateSkip = []string{"/api/", "/static/", "/favicon.ico", "/health/"}

// Gate guards /checkout and /admin pages. Failures always redirect.
func Gate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if skipped(path) {
				return next(c)
			}

			switch {
			case under(path, "/checkout"):
				if Current(c) == nil {
					return redirectToLogin(c, path)
				}
			case under(path, "/admin"):
				claims := Current(c)
				if claims == nil {
					return redirectToLogin(c, path)
				}
				if !claims.IsAdmin() {
					logging.FromContext(c.Request().Context()).Warn("gate_denied", "path", path, "role", claims.Role)
					return c.Redirect(http.StatusFound, "/?error=unauthorized")
				}
			}
			return next(c)
		}
	}
}

func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if Current(c) == nil {
			if WantsJSON(c) {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return redirectToLogin(c, c.Request().URL.Path)
		}
		return next(c)
	}
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := Current(c)
		switch {
		case claims == nil:
			if WantsJSON(c) {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return redirectToLogin(c, c.Request().URL.Path)
		case !claims.IsAdmin():
			if WantsJSON(c) {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			return c.Redirect(http.StatusFound, "/?error=unauthorized")
		}
		return next(c)
	}
}

func WantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// CallbackURL keeps only same-site relative paths and falls back to "/".
func CallbackURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return u.RequestURI()
}

func redirectToLogin(c echo.Context, path string) error {
	return c.Redirect(http.StatusFound, "/login?callbackUrl="+url.QueryEscape(path))
}

func skipped(path string) bool {
	for _, p := range gateSkip {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
