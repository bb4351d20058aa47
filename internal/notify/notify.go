// Package notify публикует события по заявкам во внешнюю очередь.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"staff_srv/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RoutingKeyStatusChanged ключ маршрутизации события смены статуса
const RoutingKeyStatusChanged = "request.status_changed"

// StatusEvent событие смены статуса группы заявок
type StatusEvent struct {
	RequestGroupID  string     `json:"request_group_id"`
	RequestType     string     `json:"request_type"`
	RequestCategory string     `json:"request_category"`
	PreviousStatus  string     `json:"previous_status"`
	Status          string     `json:"status"`
	EmployeeIDs     []uint     `json:"employee_ids"`
	OutgoingNumber  string     `json:"outgoing_number,omitempty"`
	OutgoingDate    *time.Time `json:"outgoing_date,omitempty"`
	ChangedAt       time.Time  `json:"changed_at"`
}

// Publisher отправляет события
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event StatusEvent) error
	Close() error
}

// channel часть *amqp.Channel, которая нужна публикатору
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher публикует события в topic exchange RabbitMQ
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	logger   *logrus.Logger
}

// NewAMQPPublisher подключается к брокеру и объявляет exchange
func NewAMQPPublisher(url, exchange string, logger *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка создания канала: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("ошибка объявления exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// PublishStatusChanged отправляет событие как persistent JSON сообщение
func (p *AMQPPublisher) PublishStatusChanged(ctx context.Context, event StatusEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,              // exchange
		RoutingKeyStatusChanged, // routing key
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.ChangedAt,
			MessageId:    event.RequestGroupID + ":" + event.Status,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка публикации события: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"request_group_id": event.RequestGroupID,
		"status":           event.Status,
	}).Debug("Событие опубликовано")
	return nil
}

// Close закрывает канал и соединение
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.WithError(err).Warn("Ошибка закрытия канала RabbitMQ")
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NoopPublisher используется, когда брокер не настроен
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(context.Context, StatusEvent) error { return nil }
func (NoopPublisher) Close() error                                           { return nil }

// NewPublisherFromConfig возвращает AMQP публикатор или NoopPublisher без broker.url
func NewPublisherFromConfig(cfg config.Config, logger *logrus.Logger) (Publisher, error) {
	if !cfg.BrokerEnabled() {
		logger.Info("Брокер не настроен, события по заявкам не публикуются")
		return NoopPublisher{}, nil
	}
	return NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange, logger)
}
