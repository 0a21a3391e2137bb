package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventSaleCreated = "sale.created"
	EventChannelAll  = "pos:events:all"
)

type SaleEvent struct {
	EventType     string    `json:"event_type"`
	SaleID        string    `json:"sale_id"`
	TotalAmount   string    `json:"total_amount"`
	PaymentMethod string    `json:"payment_method"`
	Currency      string    `json:"currency"`
	ItemCount     int       `json:"item_count"`
	Timestamp     time.Time `json:"timestamp"`
}

func EventChannel(eventType string) string {
	return fmt.Sprintf("pos:events:%s", eventType)
}

func (s *POSHandler) publishSaleEvent(ctx context.Context, event SaleEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.redis.Publish(ctx, EventChannel(event.EventType), eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := s.redis.Publish(ctx, EventChannelAll, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}
