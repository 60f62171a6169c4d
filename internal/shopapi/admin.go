package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
)

// ProductInput is the write payload accepted by the upstream catalog.
type ProductInput struct {
	Title       string   `json:"title" form:"title" validate:"required"`
	Price       float64  `json:"price" form:"price" validate:"gt=0"`
	Description string   `json:"description" form:"description" validate:"required"`
	CategoryID  int      `json:"categoryId" form:"categoryId" validate:"gt=0"`
	Images      []string `json:"images" form:"images" validate:"min=1,dive,url"`
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (models.Product, error) {
	var out models.Product
	err := c.send(ctx, "create_product", http.MethodPost, []string{"products"}, in, &out)
	return out, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in ProductInput) (models.Product, error) {
	var out models.Product
	err := c.send(ctx, "update_product", http.MethodPut, []string{"products", id}, in, &out)
	return out, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.send(ctx, "delete_product", http.MethodDelete, []string{"products", id}, nil, nil)
}

func (c *Client) send(ctx context.Context, op, method string, elems []string, in, out any) error {
	ctx, span := tracer.Start(ctx, "shopapi."+op)
	defer span.End()
	l := logging.FromContext(ctx).With("client", c.Name, "op", op)

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	res, err := c.Do(ctx, method, elems, nil, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.Error("shopapi_error", "reason", "request failed", "error", err)
		return fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	defer res.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		if isNotFound(res.StatusCode, msg) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		err := fmt.Errorf("%s: %w: status %d: %s", op, ErrUpstream, res.StatusCode, bytes.TrimSpace(msg))
		span.SetStatus(codes.Error, err.Error())
		l.Warn("shopapi_error", "status", res.StatusCode, "reason", "upstream rejected write", "error", err)
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", op, err)
	}
	return nil
}
