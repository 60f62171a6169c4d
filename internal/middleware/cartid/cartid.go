package cartid

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CookieName = "revoshop_cart"
	ctxKey     = "cart_id"
)

var ErrInvalid = errors.New("invalid cart cookie")

type Codec struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
}

func New(secret []byte, ttl time.Duration, secure bool) *Codec {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Codec{Secret: secret, TTL: ttl, Secure: secure}
}

// value format: cartID.base64(hmac(cartID))
func (c *Codec) Encode(cartID string) string {
	return cartID + "." + sign(c.Secret, cartID)
}

func (c *Codec) Decode(v string) (string, error) {
	id, sig, ok := strings.Cut(v, ".")
	if !ok || id == "" || strings.Contains(sig, ".") {
		return "", ErrInvalid
	}
	if !verify(c.Secret, id, sig) {
		return "", ErrInvalid
	}
	return id, nil
}

func (c *Codec) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Middleware makes sure every page request carries a signed cart id. A
// missing or tampered cookie is replaced with a fresh id.
func (c *Codec) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			if ck, err := ec.Cookie(CookieName); err == nil && ck.Value != "" {
				if id, err := c.Decode(ck.Value); err == nil {
					ec.Set(ctxKey, id)
					return next(ec)
				}
			}
			id := uuid.NewString()
			ec.SetCookie(c.cookie(c.Encode(id), int(c.TTL.Seconds())))
			ec.Set(ctxKey, id)
			return next(ec)
		}
	}
}

// FromContext returns the cart id set by Middleware, or "" outside it.
func FromContext(c echo.Context) string {
	id, _ := c.Get(ctxKey).(string)
	return id
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func verify(secret []byte, payload, sig string) bool {
	return hmac.Equal([]byte(sign(secret, payload)), []byte(sig))
}
