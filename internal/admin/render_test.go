package admin

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/sports-bet-settlement/internal/bet-api/dto"
	"github.com/radieske/sports-bet-settlement/internal/domain"
)

func TestRender(t *testing.T) {
	home, away := -150, 130
	var buf bytes.Buffer

	RenderGames(&buf, []domain.Game{{
		ID: 7, Sport: "NBA", HomeTeam: "Celtics", AwayTeam: "Lakers",
		ScheduledAt: time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC), HomeOdds: &home, AwayOdds: &away,
	}})
	out := buf.String()
	assert.Contains(t, out, "Celtics")
	assert.Contains(t, out, "+130")
	assert.Contains(t, out, "-150")

	buf.Reset()
	RenderBets(&buf, []dto.PlacedBet{{
		Bet: domain.Bet{
			ID: 1, GameID: 7, Side: domain.SideAway, Amount: decimal.NewFromInt(100), Status: domain.BetWon,
			Payout: decimal.NewNullDecimal(decimal.NewFromInt(230)),
		},
		Game: &domain.Game{ID: 7, HomeTeam: "Celtics", AwayTeam: "Lakers"},
	}})
	out = buf.String()
	assert.Contains(t, out, "Lakers @ Celtics")
	assert.Contains(t, out, "230.00")

	buf.Reset()
	RenderCleanup(&buf, dto.CleanupResponse{DeletedCount: 4, CanceledCount: 1, RefundedBets: 2})
	assert.Contains(t, buf.String(), "4")
}
