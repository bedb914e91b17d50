package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPRelay is the RabbitMQ flavour of the cross-replica relay. Events go to
// a fanout exchange; every replica binds its own exclusive queue to it.
type AMQPRelay struct {
	conn     *amqp.Connection
	pubChan  *amqp.Channel
	exchange string
	local    Sink
	log      *slog.Logger
}

func NewAMQPRelay(url, exchange string, local Sink, logger *slog.Logger) (*AMQPRelay, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(30 * time.Second),
	})
	if err != nil {
		return nil, errors.Wrap(err, "rabbitmq dial failed")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "rabbitmq: failed to open channel")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "rabbitmq: declare exchange %s", exchange)
	}

	return &AMQPRelay{conn: conn, pubChan: ch, exchange: exchange, local: local, log: logger}, nil
}

func (r *AMQPRelay) Deliver(ctx context.Context, room string, message []byte) error {
	data, err := json.Marshal(relayEnvelope{Room: room, Message: message})
	if err != nil {
		return errors.Wrap(err, "encode relay envelope")
	}
	err = r.pubChan.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         data,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "rabbitmq publish"), ErrTransportUnavailable)
	}
	return nil
}

// Run consumes this replica's queue into the local sink until ctx is done or
// the broker closes the channel.
func (r *AMQPRelay) Run(ctx context.Context) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "rabbitmq: failed to open consumer channel")
	}
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return errors.Wrap(err, "rabbitmq: declare queue")
	}
	if err := ch.QueueBind(q.Name, "", r.exchange, false, nil); err != nil {
		return errors.Wrapf(err, "rabbitmq: bind %s", q.Name)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "rabbitmq: consume")
	}
	r.log.Info("rabbitmq relay consuming", slog.String("exchange", r.exchange), slog.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq: delivery channel closed")
			}
			var env relayEnvelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				r.log.Warn("dropping malformed relay message", slog.Any("error", err))
				continue
			}
			if err := r.local.Deliver(ctx, env.Room, env.Message); err != nil {
				r.log.Warn("relay delivery failed", slog.String("room", env.Room), slog.Any("error", err))
			}
		}
	}
}

func (r *AMQPRelay) Close() error {
	_ = r.pubChan.Close()
	return r.conn.Close()
}
