package events

import (
	"context"
	"encoding/json"

	"github.com/Skotchmaster/revoshop/internal/registry"
)

// ProductEvents mirrors registry mutations onto the product topic.
type ProductEvents struct {
	Publisher Publisher
}

func (p ProductEvents) Name() string { return "product_events" }

func (p ProductEvents) Created(ctx context.Context, rec registry.Record) error {
	return p.publish(ctx, EventProductCreated, rec.ID(), rec)
}

func (p ProductEvents) Updated(ctx context.Context, rec registry.Record) error {
	return p.publish(ctx, EventProductUpdated, rec.ID(), rec)
}

func (p ProductEvents) Deleted(ctx context.Context, id string) error {
	return p.publish(ctx, EventProductDeleted, id, nil)
}

func (p ProductEvents) publish(ctx context.Context, name, id string, rec registry.Record) error {
	payload := ProductChanged{ProductID: id}
	if rec != nil {
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		payload.Product = raw
	}
	return p.Publisher.Publish(ctx, ProductTopic, id, NewEnvelope(name, id, payload))
}
