package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/carvio/listing-service/internal/platform/logger"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher emits lifecycle events on NATS subjects. Trace context travels in
// the message headers so consumers can continue the span.
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
	tracer trace.Tracer
}

// NewPublisher connects to the NATS server.
func NewPublisher(natsURL string, log *logger.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}
	log.Info("Connected to NATS", zap.String("url", natsURL))
	return &Publisher{
		conn:   conn,
		logger: log.Named("NATSPublisher"),
		tracer: otel.Tracer("listing-service/nats-publisher"),
	}, nil
}

// Publish serializes data as JSON and sends it on the subject.
func (p *Publisher) Publish(ctx context.Context, subject string, data interface{}) error {
	ctx, span := p.tracer.Start(ctx, "nats.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("messaging.destination", subject)),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal event for subject %s: %w", subject, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		span.RecordError(err)
		p.logger.Error("Failed to publish event", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("Event published", zap.String("subject", subject))
	return nil
}

// Close drains the connection so buffered messages flush before shutdown.
func (p *Publisher) Close() {
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Drain(); err != nil {
			p.logger.Warn("Failed to drain NATS connection", zap.Error(err))
		}
	}
}

// headerCarrier adapts nats.Header to the otel TextMapCarrier interface.
type headerCarrier nats.Header

var _ propagation.TextMapCarrier = headerCarrier{}

func (c headerCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c headerCarrier) Set(key, value string) {
	nats.Header(c).Set(key, value)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
