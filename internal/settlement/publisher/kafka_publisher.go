// Package publisher publica os eventos do motor de liquidação no Kafka.
package publisher

import (
	"context"
	"errors"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/topics"
)

// Topics permite sobrescrever os nomes dos tópicos (KAFKA_TOPIC_*).
type Topics struct {
	GamesIngested string
	GamesResolved string
	BetsSettled   string
}

// KafkaPublisher encapsula um writer por tópico e o logger.
type KafkaPublisher struct {
	ingested *kafka.Writer
	resolved *kafka.Writer
	settled  *kafka.Writer
	log      *zap.Logger
}

// NewKafkaPublisher cria os writers. Nomes vazios usam os tópicos padrão.
func NewKafkaPublisher(brokers []string, t Topics, log *zap.Logger) *KafkaPublisher {
	if t.GamesIngested == "" {
		t.GamesIngested = topics.GamesIngested
	}
	if t.GamesResolved == "" {
		t.GamesResolved = topics.GamesResolved
	}
	if t.BetsSettled == "" {
		t.BetsSettled = topics.BetsSettled
	}
	return &KafkaPublisher{
		ingested: skafka.NewWriter(brokers, t.GamesIngested),
		resolved: skafka.NewWriter(brokers, t.GamesResolved),
		settled:  skafka.NewWriter(brokers, t.BetsSettled),
		log:      log,
	}
}

// GamesIngested usa a liga como chave: eventos da mesma liga ficam na mesma partição.
func (p *KafkaPublisher) GamesIngested(ctx context.Context, e events.GamesIngested) error {
	return p.write(ctx, p.ingested, e.Sport, e)
}

// GameResolved usa o id do jogo como chave.
func (p *KafkaPublisher) GameResolved(ctx context.Context, e events.GameResolved) error {
	return p.write(ctx, p.resolved, strconv.FormatInt(e.GameID, 10), e)
}

// BetSettled usa o usuário como chave para manter a ordem por usuário.
func (p *KafkaPublisher) BetSettled(ctx context.Context, e events.BetSettled) error {
	return p.write(ctx, p.settled, e.UserID, e)
}

func (p *KafkaPublisher) write(ctx context.Context, w *kafka.Writer, key string, v any) error {
	if err := skafka.WriteJSON(ctx, w, key, v); err != nil {
		p.log.Error("failed to publish event", zap.String("topic", w.Topic), zap.String("key", key), zap.Error(err))
		return err
	}
	p.log.Debug("published event", zap.String("topic", w.Topic), zap.String("key", key))
	return nil
}

// Close finaliza os writers.
func (p *KafkaPublisher) Close() error {
	return errors.Join(p.ingested.Close(), p.resolved.Close(), p.settled.Close())
}
