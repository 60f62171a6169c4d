package cartid

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	c := New([]byte("secret"), 0, false)
	assert.Equal(t, 30*24*time.Hour, c.TTL)

	v := c.Encode("abc")
	id, err := c.Decode(v)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	other := New([]byte("other"), time.Hour, false)
	for _, bad := range []string{"", "abc", ".sig", "abc.sig.extra", other.Encode("abc"), "abd." + v[4:]} {
		_, err := c.Decode(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func serve(c *Codec, cookie string) (*httptest.ResponseRecorder, string) {
	e := echo.New()
	var seen string
	e.GET("/", func(ec echo.Context) error {
		seen = FromContext(ec)
		return ec.NoContent(http.StatusOK)
	}, c.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	c := New([]byte("secret"), time.Hour, true)

	rec, id := serve(c, "")
	require.NotEmpty(t, id)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, c.Encode(id), cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)

	rec, again := serve(c, cookies[0].Value)
	assert.Equal(t, id, again)
	assert.Empty(t, rec.Result().Cookies())

	rec, fresh := serve(c, "tampered.value")
	assert.NotEqual(t, id, fresh)
	assert.NotEmpty(t, fresh)
	assert.Len(t, rec.Result().Cookies(), 1)
}
