package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"private-transfer-relay/config"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// userMessage is the payload consumed by the chat frontend, which owns the
// actual delivery channel.
type userMessage struct {
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AMQPNotifier implements ports.Notifier by publishing user messages to a
// durable topic exchange. Notify is called from both the watcher and the
// queue worker goroutines; the mutex keeps publishes and the channel-reopen
// path from interleaving.
type AMQPNotifier struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      zerolog.Logger
}

// NewAMQPNotifier connects to the broker and declares the exchange.
func NewAMQPNotifier(cfg config.AMQPConfig, log zerolog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp091.DialConfig(cfg.URL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	log.Info().Str("exchange", cfg.Exchange).Msg("AMQP notifier connected")
	return &AMQPNotifier{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		log:      log,
	}, nil
}

// Notify publishes a message for the given user. On a closed channel it
// reopens once and retries; a second failure is returned to the caller, who
// treats delivery as best-effort anyway.
func (n *AMQPNotifier) Notify(ctx context.Context, userID int64, message string) error {
	body, err := json.Marshal(userMessage{
		UserID:    userID,
		Text:      message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal user message: %w", err)
	}

	publishing := amqp091.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.channel.PublishWithContext(ctx, n.exchange, "user.message", false, false, publishing)
	if err == nil {
		return nil
	}
	n.log.Warn().Err(err).Msg("publish failed, reopening channel")

	ch, chErr := n.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("reopen amqp channel: %w", chErr)
	}
	n.channel = ch
	if err := ch.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("redeclare exchange: %w", err)
	}
	return n.channel.PublishWithContext(ctx, n.exchange, "user.message", false, false, publishing)
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
