package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
)

const DefaultBaseURL = "https://api.escuelajs.co/api/v1"

const DefaultLimit = 20

var tracer = otel.Tracer("revoshop/shopapi")

type Client struct {
	Name    string
	BaseURL *url.URL
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	return NewWithHTTPClient(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid shop api base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid shop api base url %q: scheme and host required", baseURL)
	}
	return &Client{Name: "shopapi", BaseURL: u, HTTP: httpClient}, nil
}

func (c *Client) Do(ctx context.Context, method string, elems []string, query url.Values, body io.Reader) (*http.Response, error) {
	escaped := make([]string, len(elems))
	for i, e := range elems {
		escaped[i] = url.PathEscape(e)
	}
	u := c.BaseURL.JoinPath(escaped...)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTP.Do(req)
}

func fetch[T any](ctx context.Context, c *Client, op string, elems []string, query url.Values) Result[T] {
	ctx, span := tracer.Start(ctx, "shopapi."+op, trace.WithAttributes(
		attribute.String("shopapi.path", strings.Join(elems, "/")),
	))
	defer span.End()
	l := logging.FromContext(ctx).With("client", c.Name, "op", op)

	res, err := c.Do(ctx, http.MethodGet, elems, query, nil)
	if err != nil {
		return unavailable[T](span, l, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err))
	}
	defer res.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		if isNotFound(res.StatusCode, msg) {
			l.Info("shopapi_not_found", "status", res.StatusCode)
			return Result[T]{Status: StatusNotFound, Err: fmt.Errorf("%s: %w", op, ErrNotFound)}
		}
		return unavailable[T](span, l, fmt.Errorf("%s: %w: status %d", op, ErrUpstream, res.StatusCode))
	}

	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		return unavailable[T](span, l, fmt.Errorf("decode %s: %w", op, err))
	}
	return Result[T]{Value: v, Status: StatusOK}
}

// isNotFound reports a missing entity. The catalog answers unknown ids with
// 400 and an EntityNotFoundError body rather than 404.
func isNotFound(status int, body []byte) bool {
	switch status {
	case http.StatusNotFound:
		return true
	case http.StatusBadRequest:
		return bytes.Contains(body, []byte("EntityNotFound"))
	}
	return false
}

func unavailable[T any](span trace.Span, l *slog.Logger, err error) Result[T] {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	l.Warn("shopapi_error", "reason", "upstream unavailable", "error", err)
	return Result[T]{Status: StatusUnavailable, Err: err}
}

func (c *Client) Products(ctx context.Context, offset, limit int) Result[[]models.Product] {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return fetch[[]models.Product](ctx, c, "products", []string{"products"}, q)
}

func (c *Client) Product(ctx context.Context, id string) Result[models.Product] {
	if strings.TrimSpace(id) == "" {
		return Result[models.Product]{Status: StatusNotFound, Err: fmt.Errorf("product: %w", ErrNotFound)}
	}
	return fetch[models.Product](ctx, c, "product", []string{"products", id}, nil)
}

func (c *Client) Related(ctx context.Context, id string) Result[[]models.Product] {
	return fetch[[]models.Product](ctx, c, "related", []string{"products", id, "related"}, nil)
}

func (c *Client) Categories(ctx context.Context) Result[[]models.Category] {
	return fetch[[]models.Category](ctx, c, "categories", []string{"categories"}, nil)
}

func (c *Client) SearchByTitle(ctx context.Context, title string) Result[[]models.Product] {
	q := url.Values{}
	q.Set("title", title)
	return fetch[[]models.Product](ctx, c, "search", []string{"products"}, q)
}

// ProductsByCategory lists a category and narrows it by title in process,
// matching case-insensitively.
func (c *Client) ProductsByCategory(ctx context.Context, categoryID int, title string) Result[[]models.Product] {
	q := url.Values{}
	q.Set("categoryId", strconv.Itoa(categoryID))
	res := fetch[[]models.Product](ctx, c, "category_products", []string{"products"}, q)
	if !res.OK() || strings.TrimSpace(title) == "" {
		return res
	}

	needle := strings.ToLower(strings.TrimSpace(title))
	filtered := make([]models.Product, 0, len(res.Value))
	for _, p := range res.Value {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			filtered = append(filtered, p)
		}
	}
	res.Value = filtered
	return res
}
