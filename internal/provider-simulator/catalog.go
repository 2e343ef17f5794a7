package simulator

import (
	"hash/fnv"
	"strconv"
	"time"

	"github.com/radieske/sports-bet-settlement/internal/provider"
)

const (
	gamesPerDay  = 4
	gameDuration = 3 * time.Hour
	firstKickoff = 13 // hora local do primeiro jogo
	kickoffStep  = 2 * time.Hour
)

// epoch fixa a numeração dos dias; ids são estáveis entre reinícios.
var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Times fixos por liga; ligas desconhecidas usam o genérico.
var teams = map[string][]string{
	"NBA": {"Celtics", "Lakers", "Bulls", "Knicks", "Heat", "Warriors", "Nuggets", "Suns"},
	"NHL": {"Bruins", "Rangers", "Maple Leafs", "Canadiens", "Oilers", "Penguins", "Kings", "Stars"},
	"MLB": {"Yankees", "Red Sox", "Dodgers", "Cubs", "Astros", "Braves", "Mets", "Giants"},
	"NFL": {"Patriots", "Chiefs", "Eagles", "Cowboys", "Packers", "49ers", "Bills", "Ravens"},
}

var genericTeams = []string{"Home A", "Away A", "Home B", "Away B", "Home C", "Away C", "Home D", "Away D"}

// slate gera os jogos de uma liga num dia. Tudo deriva do id do jogo:
// horário, odds, placar e status (este último em função de now).
type slate struct {
	sportIdx int
	sport    provider.Sport
	loc      *time.Location
	now      time.Time
}

func dayNumber(day time.Time) int64 {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return int64(d.Sub(epoch).Hours() / 24)
}

func (s slate) games(day time.Time, withScores bool) []provider.Game {
	names := teams[string(s.sport.Code)]
	if names == nil {
		names = genericTeams
	}
	base := int64(s.sportIdx+1)*10_000_000 + dayNumber(day)*10

	out := make([]provider.Game, 0, gamesPerDay)
	for k := 0; k < gamesPerDay; k++ {
		id := base + int64(k)
		h := mix(id)
		start := time.Date(day.Year(), day.Month(), day.Day(), firstKickoff, 0, 0, 0, s.loc).Add(time.Duration(k) * kickoffStep)

		g := provider.Game{
			GlobalGameID: id,
			GameID:       id % 100_000,
			HomeTeamName: names[(2*k)%len(names)],
			AwayTeamName: names[(2*k+1)%len(names)],
			DateTime:     start.Format("2006-01-02T15:04:05"),
			Status:       s.status(start, h),
		}
		if withScores {
			if provider.IsFinal(g.Status) {
				s.setScores(&g, h)
			}
		} else {
			g.PregameOdds = []provider.PregameOdds{odds(h)}
		}
		out = append(out, g)
	}
	return out
}

func (s slate) status(start time.Time, h uint64) string {
	switch {
	case s.now.Before(start):
		return "Scheduled"
	case s.now.Before(start.Add(gameDuration)):
		return "InProgress"
	case s.sport.Code == "NHL" && h%5 == 0:
		return "F/OT"
	default:
		return "Final"
	}
}

// setScores preenche o placar no formato de cada liga. Cerca de 1 em 11 empata.
func (s slate) setScores(g *provider.Game, h uint64) {
	home := int(h%7) + 1
	away := int((h>>8)%7) + 1
	if h%11 == 0 {
		away = home
	} else if home == away {
		home++
	}
	switch s.sport.Code {
	case "MLB":
		g.HomeTeamRuns, g.AwayTeamRuns = &home, &away
	case "NFL":
		g.HomeScore, g.AwayScore = &home, &away
	default:
		g.HomeTeamScore, g.AwayTeamScore = &home, &away
	}
}

// odds gera uma linha americana com favorito e azarão; às vezes falta a do visitante.
func odds(h uint64) provider.PregameOdds {
	fav := -(105 + int(h%150))
	dog := 100 + int((h>>16)%200)
	o := provider.PregameOdds{Sportsbook: "SimBook"}
	if h%2 == 0 {
		o.HomeMoneyLine, o.AwayMoneyLine = &fav, &dog
	} else {
		o.HomeMoneyLine, o.AwayMoneyLine = &dog, &fav
	}
	if h%9 == 0 {
		o.AwayMoneyLine = nil
	}
	return o
}

func mix(id int64) uint64 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(strconv.FormatInt(id, 10)))
	return f.Sum64()
}
