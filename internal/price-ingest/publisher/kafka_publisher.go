package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

// messageWriter é a parte do kafka.Writer que o publisher usa.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher envia cotações para o tópico price_quotes.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

// NewKafkaPublisher cria o writer do tópico. Em ambiente local/dev o tópico é
// criado via controller do cluster antes do primeiro envio.
func NewKafkaPublisher(brokers []string, topic, env string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not provided")
	}
	if env == "local" || env == "dev" {
		if err := ensureTopic(brokers[0], topic, log); err != nil {
			return nil, err
		}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mesma partição por feed
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: writer, log: log}, nil
}

func ensureTopic(broker, topic string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	switch {
	case err == nil:
		log.Info("kafka topic created", zap.String("topic", topic))
	case strings.Contains(err.Error(), "already exists"):
	default:
		log.Warn("failed to create kafka topic", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}

// Publish serializa a cotação; a chave é o FeedID.
func (p *KafkaPublisher) Publish(ctx context.Context, q events.PriceQuote) error {
	value, err := json.Marshal(q)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(q.FeedID), Value: value, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish price quote", zap.String("feed_id", q.FeedID), zap.Error(err))
		return err
	}
	p.log.Debug("published price quote", zap.String("feed_id", q.FeedID), zap.Int64("price", q.Price))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
