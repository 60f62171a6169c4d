package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/revoshop/internal/auth"
	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/middleware/session"
	"github.com/Skotchmaster/revoshop/internal/validation"
	"github.com/Skotchmaster/revoshop/internal/view"
)

type AuthHandler struct {
	Base
	Auth         *auth.Service
	SecureCookie bool
}

type loginForm struct {
	Email       string `form:"email" validate:"required,email"`
	Password    string `form:"password" validate:"required"`
	CallbackURL string `form:"callbackUrl"`
}

func (h *AuthHandler) LoginPage(c echo.Context) error {
	callback := session.CallbackURL(c.QueryParam("callbackUrl"))
	if session.Current(c) != nil {
		return c.Redirect(http.StatusFound, callback)
	}
	return h.render(c, http.StatusOK, "login", "Sign in", view.LoginData{CallbackURL: callback})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "login")

	var form loginForm
	if err := c.Bind(&form); err != nil {
		l.Warn("login_error", "status", 400, "reason", "bind", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data.")
	}
	callback := session.CallbackURL(form.CallbackURL)

	if err := c.Validate(&form); err != nil {
		return h.render(c, http.StatusUnprocessableEntity, "login", "Sign in", view.LoginData{
			Email:       form.Email,
			CallbackURL: callback,
			Errors:      validation.FromError(err, &form),
		})
	}

	res, err := h.Auth.Login(ctx, form.Email, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return h.render(c, http.StatusUnauthorized, "login", "Sign in", view.LoginData{
				Email:       form.Email,
				CallbackURL: callback,
				Failed:      true,
			})
		}
		l.Error("login_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Sign in failed. Please try again.")
	}

	c.SetCookie(auth.CreateCookie(auth.SessionCookie, res.Token, "/", res.ExpiresAt, h.SecureCookie))
	return c.Redirect(http.StatusFound, callback)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.Auth.Logout(ctx, session.Current(c)); err != nil {
		logging.FromContext(ctx).Error("logout_error", "error", err)
	}
	c.SetCookie(auth.DeleteCookie(auth.SessionCookie, "/", h.SecureCookie))
	return c.Redirect(http.StatusFound, "/")
}

type sessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type sessionResponse struct {
	User    sessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

func (h *AuthHandler) Session(c echo.Context) error {
	claims := session.Current(c)
	if claims == nil {
		return c.JSON(http.StatusOK, echo.Map{})
	}
	resp := sessionResponse{
		User: sessionUser{ID: claims.Subject, Name: claims.Name, Email: claims.Email, Role: claims.Role},
	}
	if claims.ExpiresAt != nil {
		resp.Expires = claims.ExpiresAt.Time.UTC()
	}
	return c.JSON(http.StatusOK, resp)
}
