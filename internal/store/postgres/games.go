package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

// GameRepo persiste jogos na tabela games.
type GameRepo struct{ db *sql.DB }

const gameColumns = `id, sport, home_team, away_team, scheduled_at, home_odds, away_odds,
	status, winner, home_score, away_score, finished_at, auto_canceled, updated_at`

func scanGame(r rowScanner) (domain.Game, error) {
	var (
		g                    domain.Game
		sport, status        string
		winner               sql.NullString
		homeOdds, awayOdds   sql.NullInt64
		homeScore, awayScore sql.NullInt64
		finishedAt           sql.NullTime
	)
	if err := r.Scan(&g.ID, &sport, &g.HomeTeam, &g.AwayTeam, &g.ScheduledAt, &homeOdds, &awayOdds,
		&status, &winner, &homeScore, &awayScore, &finishedAt, &g.AutoCanceled, &g.UpdatedAt); err != nil {
		return domain.Game{}, err
	}
	g.Sport = domain.Sport(sport)
	g.Status = domain.GameStatus(status)
	g.Winner = domain.Winner(winner.String) // NULL -> WinnerUndecided
	g.HomeOdds = intPtr(homeOdds)
	g.AwayOdds = intPtr(awayOdds)
	g.HomeScore = intPtr(homeScore)
	g.AwayScore = intPtr(awayScore)
	g.FinishedAt = timePtr(finishedAt)
	return g, nil
}

func (r *GameRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Game, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, domain.Persistence(op, err)
	}
	defer rows.Close()
	var out []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, domain.Persistence(op, err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence(op, err)
	}
	return out, nil
}

// UpsertScheduled insere ou atualiza um jogo. O ON CONFLICT só atualiza
// linhas com winner IS NULL, então jogos decididos nunca são sobrescritos.
func (r *GameRepo) UpsertScheduled(ctx context.Context, g domain.Game) (bool, error) {
	const q = `
		INSERT INTO games
		  (id, sport, home_team, away_team, scheduled_at, home_odds, away_odds, status, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,'scheduled',NOW())
		ON CONFLICT (id) DO UPDATE SET
		  sport        = EXCLUDED.sport,
		  home_team    = EXCLUDED.home_team,
		  away_team    = EXCLUDED.away_team,
		  scheduled_at = EXCLUDED.scheduled_at,
		  home_odds    = EXCLUDED.home_odds,
		  away_odds    = EXCLUDED.away_odds,
		  updated_at   = NOW()
		WHERE games.winner IS NULL`
	res, err := r.db.ExecContext(ctx, q,
		g.ID, string(g.Sport), g.HomeTeam, g.AwayTeam, g.ScheduledAt, g.HomeOdds, g.AwayOdds,
	)
	if err != nil {
		return false, domain.Persistence("upsert game", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Persistence("upsert game", err)
	}
	return n == 1, nil
}

func (r *GameRepo) Get(ctx context.Context, id int64) (domain.Game, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Game{}, domain.ErrGameNotFound
	}
	if err != nil {
		return domain.Game{}, domain.Persistence("get game", err)
	}
	return g, nil
}

func (r *GameRepo) ListUndecided(ctx context.Context) ([]domain.Game, error) {
	return r.query(ctx, "list undecided games", `
		SELECT `+gameColumns+`
		FROM games
		WHERE winner IS NULL AND status <> 'finished'
		ORDER BY scheduled_at, id`)
}

func (r *GameRepo) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.Game, error) {
	return r.query(ctx, "list finished games", `
		SELECT `+gameColumns+`
		FROM games
		WHERE status = 'finished' AND finished_at < $1
		ORDER BY finished_at, id`, cutoff)
}

func (r *GameRepo) ListStaleUndecided(ctx context.Context, cutoff time.Time) ([]domain.Game, error) {
	return r.query(ctx, "list stale games", `
		SELECT `+gameColumns+`
		FROM games
		WHERE winner IS NULL AND status <> 'finished' AND scheduled_at < $1
		ORDER BY scheduled_at, id`, cutoff)
}

// ListDecidedWithPendingBets acha jogos já decididos que ainda têm apostas
// pending, para a liquidação ser retomada na passada seguinte.
func (r *GameRepo) ListDecidedWithPendingBets(ctx context.Context) ([]domain.Game, error) {
	return r.query(ctx, "list decided games with pending bets", `
		SELECT `+gameColumns+`
		FROM games g
		WHERE g.winner IS NOT NULL
		  AND EXISTS (SELECT 1 FROM placed_bets b WHERE b.game_id = g.id AND b.status = 'pending')
		ORDER BY g.finished_at, g.id`)
}

// MarkFinished grava o resultado uma única vez (guarda winner IS NULL).
func (r *GameRepo) MarkFinished(ctx context.Context, res domain.Resolution) (bool, error) {
	const q = `
		UPDATE games
		SET winner=$1, status='finished', home_score=$2, away_score=$3, finished_at=$4, updated_at=NOW()
		WHERE id=$5 AND winner IS NULL`
	out, err := r.db.ExecContext(ctx, q, string(res.Winner), res.HomeScore, res.AwayScore, res.FinishedAt, res.GameID)
	if err != nil {
		return false, domain.Persistence("mark game finished", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return false, domain.Persistence("mark game finished", err)
	}
	return n == 1, nil
}

func (r *GameRepo) ForceCancel(ctx context.Context, id int64, at time.Time) (bool, error) {
	const q = `
		UPDATE games
		SET winner='tie', status='finished', auto_canceled=TRUE, finished_at=$1, updated_at=NOW()
		WHERE id=$2 AND winner IS NULL`
	out, err := r.db.ExecContext(ctx, q, at, id)
	if err != nil {
		return false, domain.Persistence("cancel game", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return false, domain.Persistence("cancel game", err)
	}
	return n == 1, nil
}

// DeleteIfUnreferenced apaga o jogo só quando nenhuma aposta aponta para ele,
// na mesma instrução (sem janela entre contar e apagar).
func (r *GameRepo) DeleteIfUnreferenced(ctx context.Context, id int64) (bool, error) {
	const q = `
		DELETE FROM games g
		WHERE g.id=$1
		  AND NOT EXISTS (SELECT 1 FROM placed_bets b WHERE b.game_id = g.id)`
	out, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, domain.Persistence("delete game", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return false, domain.Persistence("delete game", err)
	}
	return n == 1, nil
}
