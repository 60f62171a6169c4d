package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/revoshop/internal/cart"
	"github.com/Skotchmaster/revoshop/internal/events"
	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidShipping = errors.New("invalid shipping details")
	ErrOrderNotFound   = errors.New("order not found")
)

type ShippingDetails struct {
	Address string `form:"address" validate:"required"`
	City    string `form:"city"    validate:"required"`
	State   string `form:"state"   validate:"required"`
	ZipCode string `form:"zipCode" validate:"required"`
	Country string `form:"country" validate:"required"`
	Phone   string `form:"phone"   validate:"required"`
}

type Customer struct {
	UserID uuid.UUID
	Email  string
}

type Validator interface {
	Validate(i any) error
}

type Service struct {
	DB        *gorm.DB
	Publisher events.Publisher
	Validator Validator
}

func (s *Service) PlaceOrder(ctx context.Context, customer Customer, cartID string, lines []cart.Line, shipping ShippingDetails) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "checkout", "user_id", customer.UserID.String())

	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if s.Validator != nil {
		if err := s.Validator.Validate(&shipping); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidShipping, err)
		}
	}

	order := &models.Order{
		UserID:  customer.UserID,
		Email:   customer.Email,
		CartID:  cartID,
		Address: shipping.Address,
		City:    shipping.City,
		State:   shipping.State,
		ZipCode: shipping.ZipCode,
		Country: shipping.Country,
		Phone:   shipping.Phone,
	}
	items := make([]events.CartItem, 0, len(lines))
	var subtotal float64
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: line %s", cart.ErrInvalidQuantity, line.ID)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: line.ID.String(),
			Title:     line.Title,
			Price:     line.Price,
			Quantity:  line.Quantity,
		})
		items = append(items, events.CartItem{
			ProductID: line.ID.String(),
			Title:     line.Title,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
		subtotal += line.Total()
	}
	order.Subtotal = math.Round(subtotal*100) / 100

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		l.Error("checkout_error", "status", 500, "reason", "persist order", "error", err)
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.Publisher != nil {
		env := events.NewEnvelope(events.EventCartCheckedOut, cartID, events.CartCheckedOut{
			CartID:      cartID,
			UserID:      customer.UserID.String(),
			OrderID:     order.ID.String(),
			Items:       items,
			TotalAmount: order.Subtotal,
			Timestamp:   time.Now().UTC(),
		})
		if err := s.Publisher.Publish(ctx, events.CartTopic, cartID, env); err != nil {
			l.Warn("event_publish_error", "event", events.EventCartCheckedOut, "order_id", order.ID.String(), "error", err)
		}
	}

	l.Info("order_placed", "order_id", order.ID.String(), "items", len(order.Items), "subtotal", order.Subtotal)
	return order, nil
}

// Order loads one of the user's orders with its items.
func (s *Service) Order(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
