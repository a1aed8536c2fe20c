package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"propsift/models"
)

const (
	eventExchange   = "propsift.events"
	ingestedRouting = "listing.ingested"
)

// ListingEvent is the message body published after a listing row lands in
// the warehouse. Consumers key on listing_id, which is stable across
// re-ingestion.
type ListingEvent struct {
	ListingID string `json:"listing_id"`
	SourceID  string `json:"source_id"`
	URL       string `json:"url"`
	Price     *int   `json:"price"`
	Status    string `json:"status"`
}

// Publisher emits listing events to a topic exchange. It is optional: a
// nil Publisher is valid and publishes nothing.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher connects and declares the event exchange. An empty URL
// returns a nil publisher, which disables event publishing.
func NewPublisher(amqpURL string) (*Publisher, error) {
	if amqpURL == "" {
		return nil, nil
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(eventExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// PublishIngested emits one listing.ingested event per listing row in the
// saved set. Returns the first publish error; earlier events stay sent.
func (p *Publisher) PublishIngested(ctx context.Context, rs *models.RowSet) error {
	if p == nil || rs == nil {
		return nil
	}

	for _, l := range rs.Listings {
		event := ListingEvent{
			ListingID: l.ListingID,
			SourceID:  l.SourceID,
			URL:       l.SourceURL,
			Price:     l.ListPrice,
			Status:    l.Status,
		}
		body, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		err = p.channel.PublishWithContext(ctx,
			eventExchange, ingestedRouting, false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish %s: %w", l.ListingID, err)
		}
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
