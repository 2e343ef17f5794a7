package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radieske/sports-bet-settlement/internal/bet-api/dto"
	"github.com/radieske/sports-bet-settlement/internal/domain"
)

// Client fala com a bet-api em nome do operador.
type Client struct {
	BaseURL    string
	Token      string // X-Admin-Token
	UserHeader string
	HTTP       *http.Client
}

func New(base, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(base, "/"),
		Token:      token,
		UserHeader: "x-user-id",
		HTTP:       &http.Client{Timeout: 10 * time.Second},
	}
}

// CleanupOldGames dispara a aposentadoria forçada de jogos parados.
func (c *Client) CleanupOldGames(ctx context.Context) (dto.CleanupResponse, error) {
	var out dto.CleanupResponse
	err := c.do(ctx, http.MethodPost, "/admin/cleanup-old-games", func(r *http.Request) {
		r.Header.Set("X-Admin-Token", c.Token)
	}, &out)
	return out, err
}

// Games lista os jogos ainda sem resultado.
func (c *Client) Games(ctx context.Context) ([]domain.Game, error) {
	var out []domain.Game
	err := c.do(ctx, http.MethodGet, "/games", nil, &out)
	return out, err
}

// Bets lista as apostas de um usuário com seus jogos.
func (c *Client) Bets(ctx context.Context, userID string) ([]dto.PlacedBet, error) {
	var out []dto.PlacedBet
	err := c.do(ctx, http.MethodGet, "/placed-bets", func(r *http.Request) {
		r.Header.Set(c.UserHeader, userID)
	}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, prepare func(*http.Request), out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if prepare != nil {
		prepare(req)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var e dto.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: http %d: %s (%s)", method, path, res.StatusCode, e.Error, e.Kind)
		}
		return fmt.Errorf("%s %s: http %d", method, path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
