package ws

import "encoding/json"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Channel: "games" ou "user:<id>" (só o próprio usuário)
type ClientMsg struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// Update é o envelope enviado aos clientes e trafegado no Redis Pub/Sub.
// Type é o tópico de origem (games_ingested, games_resolved, bets_settled).
type Update struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const ChannelGames = "games"

// UserChannel é o canal das apostas de um usuário.
func UserChannel(userID string) string { return "user:" + userID }
