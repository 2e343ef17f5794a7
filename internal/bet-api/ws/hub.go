package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 2 * time.Second

// client serializa as escritas numa conexão (gorilla não aceita escritores concorrentes).
type client struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por canal
// subs: mapeia canal para o conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	identify func(r *http.Request) string

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

// NewHub cria o hub. identify extrai o usuário da requisição de upgrade
// (vazio = anônimo, só pode assinar "games").
func NewHub(allowOrigin func(r *http.Request) bool, identify func(r *http.Request) string, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		identify: identify,
		subs:     make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) allowed(c *client, channel string) bool {
	if channel == ChannelGames {
		return true
	}
	user, ok := strings.CutPrefix(channel, "user:")
	return ok && user != "" && user == c.userID
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe em canais e responde a pings
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	if h.identify != nil {
		c.userID = h.identify(r)
	}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if !h.allowed(c, msg.Channel) {
				_ = c.write([]byte(`{"type":"error","error":"channel not allowed"}`))
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Channel]; !ok {
				h.subs[msg.Channel] = make(map[*client]struct{})
			}
			h.subs[msg.Channel][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.Channel]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.Channel)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
}

// drop remove o cliente de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, ch)
		}
	}
}

// Broadcast envia a atualização para todos os clientes inscritos no canal
func (h *Hub) Broadcast(update Update) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.Channel]))
	for c := range h.subs[update.Channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.String("channel", update.Channel), zap.Error(err))
		}
	}
}

// Subscribers conta os clientes de um canal.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
