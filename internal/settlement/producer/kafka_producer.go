// Package producer publica os eventos de liquidação no Kafka.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter é o subconjunto de *kafka.Writer usado aqui.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implementa engine.Publisher. Um único writer atende todos os
// tópicos; o nome real de cada tópico vem da configuração.
type KafkaPublisher struct {
	writer messageWriter
	topics map[string]string // tópico lógico -> tópico configurado
	log    *zap.Logger

	OnPublished func(topic string)
	OnError     func(topic string)
}

// NewKafkaPublisher cria o writer com timeouts e balanceamento por chave, para
// que eventos do mesmo mercado caiam na mesma partição.
func NewKafkaPublisher(brokers []string, topics map[string]string, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}
	return newPublisher(w, topics, log)
}

func newPublisher(w messageWriter, topics map[string]string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaPublisher{writer: w, topics: topics, log: log}
}

// Publish serializa o evento em JSON e envia com a chave informada.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, v any) error {
	name := topic
	if t, ok := p.topics[topic]; ok && t != "" {
		name = t
	}
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	msg := kafka.Message{
		Topic: name,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		if p.OnError != nil {
			p.OnError(topic)
		}
		return err
	}
	if p.OnPublished != nil {
		p.OnPublished(topic)
	}
	p.log.Debug("event published", zap.String("topic", name), zap.String("key", key))
	return nil
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
