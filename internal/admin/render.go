package admin

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/radieske/sports-bet-settlement/internal/bet-api/dto"
	"github.com/radieske/sports-bet-settlement/internal/domain"
)

const timeLayout = "2006-01-02 15:04 MST"

func RenderCleanup(w io.Writer, out dto.CleanupResponse) {
	table := tablewriter.NewWriter(w)
	table.Header("Deleted", "Canceled", "Refunded bets")
	table.Append(strconv.Itoa(out.DeletedCount), strconv.Itoa(out.CanceledCount), strconv.Itoa(out.RefundedBets))
	table.Render()
}

func RenderGames(w io.Writer, games []domain.Game) {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Sport", "Home", "Away", "Scheduled", "Home odds", "Away odds")
	for _, g := range games {
		table.Append(
			strconv.FormatInt(g.ID, 10),
			string(g.Sport),
			g.HomeTeam,
			g.AwayTeam,
			g.ScheduledAt.UTC().Format(timeLayout),
			oddsLabel(g.HomeOdds),
			oddsLabel(g.AwayOdds),
		)
	}
	table.Render()
}

func RenderBets(w io.Writer, bets []dto.PlacedBet) {
	table := tablewriter.NewWriter(w)
	table.Header("Bet", "Game", "Match", "Side", "Amount", "Status", "Payout")
	for _, b := range bets {
		match := "-"
		if b.Game != nil {
			match = fmt.Sprintf("%s @ %s", b.Game.AwayTeam, b.Game.HomeTeam)
		}
		payout := "-"
		if b.Payout.Valid {
			payout = b.Payout.Decimal.StringFixed(2)
		}
		table.Append(
			strconv.FormatInt(b.ID, 10),
			strconv.FormatInt(b.GameID, 10),
			match,
			string(b.Side),
			b.Amount.StringFixed(2),
			string(b.Status),
			payout,
		)
	}
	table.Render()
}

func oddsLabel(o *int) string {
	switch {
	case o == nil:
		return "-"
	case *o > 0:
		return "+" + strconv.Itoa(*o)
	default:
		return strconv.Itoa(*o)
	}
}
