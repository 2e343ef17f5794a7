package settlement_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/sports-bet-settlement/internal/domain"
	"github.com/radieske/sports-bet-settlement/internal/settlement"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intp(v int) *int { return &v }

func TestPayout(t *testing.T) {
	cases := []struct {
		amount string
		odds   int
		want   string
	}{
		{"100", 150, "250"},
		{"150", -150, "250"},
		{"50", -200, "75"},
		{"100", 130, "230"},
		{"100", -110, "190.91"},
		{"10.50", 100, "21"},
		{"100", 0, "100"},
	}
	for _, c := range cases {
		got := settlement.Payout(dec(c.amount), c.odds)
		assert.True(t, dec(c.want).Equal(got), "amount=%s odds=%d got=%s want=%s", c.amount, c.odds, got, c.want)
	}
}

func TestClassify(t *testing.T) {
	at := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	game := domain.Game{ID: 1, HomeOdds: intp(-150), AwayOdds: intp(130)}
	bet := domain.Bet{ID: 7, UserID: "u1", GameID: 1, Side: domain.SideAway, Amount: dec("100")}

	won := settlement.Classify(game, domain.WinnerAway, bet, at)
	assert.Equal(t, domain.BetWon, won.To)
	assert.Equal(t, domain.LedgerPayout, won.Op)
	assert.True(t, dec("230").Equal(won.Credit))

	lost := settlement.Classify(game, domain.WinnerHome, bet, at)
	assert.Equal(t, domain.BetLost, lost.To)
	assert.True(t, lost.Credit.IsZero())
	assert.True(t, lost.Payout.IsZero())

	push := settlement.Classify(game, domain.WinnerTie, bet, at)
	assert.Equal(t, domain.BetPushed, push.To)
	assert.Equal(t, domain.LedgerPush, push.Op)
	assert.True(t, dec("100").Equal(push.Credit))

	noOdds := settlement.Classify(domain.Game{ID: 1, HomeOdds: intp(-150)}, domain.WinnerAway, bet, at)
	assert.Equal(t, domain.BetWon, noOdds.To)
	assert.True(t, dec("100").Equal(noOdds.Payout))
}
