package provider

import (
	"strings"
	"time"
)

// DateLayout é o formato de data aceito nas rotas do fornecedor.
const DateLayout = "2006-01-02"

// dateTimeLayout é o formato de DateTime no payload (sem offset, fuso do fornecedor).
const dateTimeLayout = "2006-01-02T15:04:05"

// PregameOdds é uma linha de odds pré-jogo de uma casa.
type PregameOdds struct {
	Sportsbook    string `json:"Sportsbook"`
	HomeMoneyLine *int   `json:"HomeMoneyLine"`
	AwayMoneyLine *int   `json:"AwayMoneyLine"`
}

// Game é o jogo como o fornecedor devolve nos endpoints de odds e placares.
// Cada liga usa nomes de campo ligeiramente diferentes para o placar.
type Game struct {
	GlobalGameID int64  `json:"GlobalGameID"`
	GameID       int64  `json:"GameID,omitempty"`
	HomeTeamName string `json:"HomeTeamName,omitempty"`
	AwayTeamName string `json:"AwayTeamName,omitempty"`
	HomeTeam     string `json:"HomeTeam,omitempty"`
	AwayTeam     string `json:"AwayTeam,omitempty"`
	DateTime     string `json:"DateTime,omitempty"`
	Status       string `json:"Status,omitempty"`

	HomeTeamScore *int `json:"HomeTeamScore,omitempty"`
	AwayTeamScore *int `json:"AwayTeamScore,omitempty"`
	HomeTeamRuns  *int `json:"HomeTeamRuns,omitempty"`
	AwayTeamRuns  *int `json:"AwayTeamRuns,omitempty"`
	HomeScore     *int `json:"HomeScore,omitempty"`
	AwayScore     *int `json:"AwayScore,omitempty"`

	PregameOdds []PregameOdds `json:"PregameOdds,omitempty"`
}

// ID devolve o id global (único entre ligas), caindo para GameID.
func (g Game) ID() int64 {
	if g.GlobalGameID != 0 {
		return g.GlobalGameID
	}
	return g.GameID
}

// Teams devolve os nomes dos times, com "Unknown" quando ausentes.
func (g Game) Teams() (home, away string) {
	home = firstNonEmpty(g.HomeTeamName, g.HomeTeam, "Unknown")
	away = firstNonEmpty(g.AwayTeamName, g.AwayTeam, "Unknown")
	return home, away
}

// Scores devolve o placar final; nil quando o payload não traz placar.
func (g Game) Scores() (home, away *int) {
	switch {
	case g.HomeTeamScore != nil && g.AwayTeamScore != nil:
		return g.HomeTeamScore, g.AwayTeamScore
	case g.HomeTeamRuns != nil && g.AwayTeamRuns != nil:
		return g.HomeTeamRuns, g.AwayTeamRuns
	case g.HomeScore != nil && g.AwayScore != nil:
		return g.HomeScore, g.AwayScore
	}
	return nil, nil
}

// Odds devolve a primeira linha pré-jogo com ao menos um money line.
// Linhas de casas sem cotação (ambos nil) são puladas.
func (g Game) Odds() (home, away *int) {
	for _, o := range g.PregameOdds {
		if o.HomeMoneyLine != nil || o.AwayMoneyLine != nil {
			return o.HomeMoneyLine, o.AwayMoneyLine
		}
	}
	return nil, nil
}

// ScheduledAt interpreta DateTime no fuso do fornecedor.
// Aceita também RFC3339 (com offset explícito).
func (g Game) ScheduledAt(loc *time.Location) (time.Time, bool) {
	if g.DateTime == "" {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(dateTimeLayout, g.DateTime, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, g.DateTime); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// IsFinal reconhece os status terminais do fornecedor, sem diferenciar caixa:
// contém "final", igual a "f", contém "f/ot" ou igual a "closed".
func IsFinal(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return strings.Contains(s, "final") || s == "f" || strings.Contains(s, "f/ot") || s == "closed"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
