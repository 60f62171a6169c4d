package session

import (
	"context"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/auth"
	"github.com/Skotchmaster/revoshop/internal/logging"
)

const (
	CtxClaims = "session"
	CtxUserID = "user_id"
	CtxRole   = "role"
)

type Parser interface {
	ParseSession(ctx context.Context, token string) (*auth.SessionClaims, error)
}

// Middleware resolves the session cookie into claims. Anonymous requests and
// requests with a bad cookie continue without claims; a bad cookie is cleared.
func Middleware(p Parser, secureCookie bool) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  CtxClaims,
		TokenLookup: "cookie:" + auth.SessionCookie,
		ParseTokenFunc: func(c echo.Context, token string) (any, error) {
			claims, err := p.ParseSession(c.Request().Context(), token)
			if err != nil {
				return nil, err
			}
			return claims, nil
		},
		SuccessHandler: func(c echo.Context) {
			if claims := Current(c); claims != nil {
				c.Set(CtxUserID, claims.Subject)
				c.Set(CtxRole, claims.Role)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if ck, cerr := c.Cookie(auth.SessionCookie); cerr == nil && ck.Value != "" {
				logging.FromContext(c.Request().Context()).Info("session_invalid", "reason", err.Error())
				c.SetCookie(auth.DeleteCookie(auth.SessionCookie, "/", secureCookie))
			}
			return nil
		},
		ContinueOnIgnoredError: true,
	})
}

// Current returns the signed-in user's claims or nil.
func Current(c echo.Context) *auth.SessionClaims {
	claims, _ := c.Get(CtxClaims).(*auth.SessionClaims)
	return claims
}
