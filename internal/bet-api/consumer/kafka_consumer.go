package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/bet-api/ws"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/topics"
)

// MessageReader é o subconjunto de *kafka.Reader usado aqui.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Invalidator invalida o cache da lista de jogos.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Broadcaster repassa a atualização para os clientes WebSocket (via Redis).
type Broadcaster interface {
	Publish(ctx context.Context, u ws.Update) error
}

// Processor consome os eventos de liquidação do Kafka, invalida o cache de
// jogos e repassa as atualizações para os canais WebSocket.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Cache       Invalidator // opcional
	Broadcaster Broadcaster // opcional

	OnConsumed func(topic string)
	OnError    func(stage string)
}

// Run inicia o loop principal de consumo das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Falhas de cache ou broadcast não bloqueiam as outras etapas.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	if p.OnConsumed != nil {
		p.OnConsumed(m.Topic)
	}

	upd := ws.Update{Type: m.Topic, Payload: json.RawMessage(m.Value)}
	switch m.Topic {
	case topics.GamesIngested, topics.GamesResolved:
		if !json.Valid(m.Value) {
			p.Log.Warn("invalid message", zap.String("topic", m.Topic))
			p.fail("decode")
			return
		}
		if p.Cache != nil {
			if err := p.Cache.Invalidate(ctx); err != nil {
				p.Log.Warn("games cache invalidate failed", zap.Error(err))
				p.fail("cache")
			}
		}
		upd.Channel = ws.ChannelGames
	case topics.BetsSettled:
		var ev events.BetSettled
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.UserID == "" {
			p.Log.Warn("invalid message", zap.String("topic", m.Topic), zap.Error(err))
			p.fail("decode")
			return
		}
		upd.Channel = ws.UserChannel(ev.UserID)
	default:
		p.Log.Debug("ignoring message from unknown topic", zap.String("topic", m.Topic))
		return
	}

	if p.Broadcaster == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := p.Broadcaster.Publish(pubCtx, upd); err != nil {
		p.Log.Warn("ws broadcast publish failed", zap.String("channel", upd.Channel), zap.Error(err))
		p.fail("broadcast")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
