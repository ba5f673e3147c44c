package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQueue       = "analyses"
	DefaultExchange    = "analysis_updates"
	DefaultConcurrency = 3
)

type channelPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher sends status updates to a topic exchange with the routing key
// "analysis.<request id>".
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       channelPublisher
	exchange string
}

// NewAMQPPublisher opens a dedicated channel on conn and declares the
// durable topic exchange.
func NewAMQPPublisher(conn *amqp.Connection, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(_ context.Context, u Update) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.Publish(
		p.exchange,
		"analysis."+u.RequestID.String(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    u.Timestamp,
			Body:         body,
		},
	)
}

type PoolConfig struct {
	Queue       string
	Concurrency int
	Prefetch    int
}

// Pool consumes the analysis queue with a fixed number of consumers, each on
// its own channel of a shared connection.
type Pool struct {
	conn    *amqp.Connection
	cfg     PoolConfig
	handler *Handler
	logger  *zap.Logger
}

func NewPool(conn *amqp.Connection, cfg PoolConfig, handler *Handler, logger *zap.Logger) *Pool {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{conn: conn, cfg: cfg, handler: handler, logger: logger}
}

// Run blocks until ctx is done or a consumer fails.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := range p.cfg.Concurrency {
		id := i + 1
		g.Go(func() error {
			return p.consume(ctx, id)
		})
	}

	p.logger.Info("worker pool started",
		zap.String("queue", p.cfg.Queue),
		zap.Int("concurrency", p.cfg.Concurrency),
	)

	return g.Wait()
}

func (p *Pool) consume(ctx context.Context, id int) error {
	log := p.logger.With(zap.Int("worker", id))

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("worker %d: open channel: %w", id, err)
	}
	defer ch.Close()

	if err := ch.Qos(p.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("worker %d: set qos: %w", id, err)
	}

	if _, err := ch.QueueDeclare(
		p.cfg.Queue, // name
		true,        // durable
		false,       // auto-delete
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	); err != nil {
		return fmt.Errorf("worker %d: declare queue: %w", id, err)
	}

	msgs, err := ch.Consume(
		p.cfg.Queue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("worker %d: consume: %w", id, err)
	}

	log.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery channel closed by broker")
			}

			if err := p.handler.Handle(ctx, msg.Body); err != nil {
				log.Debug("message handled with error", zap.Error(err))
			}
			if err := msg.Ack(false); err != nil {
				log.Warn("failed to ack message", zap.Error(err))
			}
		}
	}
}
