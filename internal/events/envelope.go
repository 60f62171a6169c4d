package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ProductTopic = "product_events"
	CartTopic    = "cart_events"
	UserTopic    = "user_events"

	producerName = "revoshop"
)

// Envelope wraps every published event.
type Envelope[T any] struct {
	EventName    string    `json:"eventName"`
	EventVersion int       `json:"eventVersion"`
	EventID      string    `json:"eventId"`
	RequestID    string    `json:"requestId,omitempty"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	OccurredAt   time.Time `json:"occurredAt"`
	Payload      T         `json:"payload"`
}

func NewEnvelope[T any](name, partitionKey string, payload T) Envelope[T] {
	return Envelope[T]{
		EventName:    name,
		EventVersion: 1,
		EventID:      uuid.NewString(),
		Producer:     producerName,
		PartitionKey: partitionKey,
		OccurredAt:   time.Now().UTC(),
		Payload:      payload,
	}
}

func (e Envelope[T]) Validate(expectedName string, expectedVersion int) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName: %s", e.EventName)
	}
	if e.EventVersion != expectedVersion {
		return fmt.Errorf("unexpected eventVersion: %d", e.EventVersion)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	if e.EventID == "" {
		return fmt.Errorf("missing eventId")
	}
	return nil
}

type CartItem struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type CartCheckedOut struct {
	CartID      string     `json:"cartId"`
	UserID      string     `json:"userId"`
	OrderID     string     `json:"orderId"`
	Items       []CartItem `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
	Timestamp   time.Time  `json:"timestamp"`
}

type ProductChanged struct {
	ProductID string          `json:"productId"`
	Product   json.RawMessage `json:"product,omitempty"`
}

type UserSession struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

const (
	EventCartCheckedOut = "CartCheckedOut"
	EventProductCreated = "ProductCreated"
	EventProductUpdated = "ProductUpdated"
	EventProductDeleted = "ProductDeleted"
	EventUserLoggedIn   = "UserLoggedIn"
	EventUserLoggedOut  = "UserLoggedOut"
)
