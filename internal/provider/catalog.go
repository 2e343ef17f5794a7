package provider

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/radieske/sports-bet-settlement/internal/domain"
)

const (
	defaultOddsPath   = "/{sport}/odds/json/GameOddsByDate/{date}"
	defaultScoresPath = "/{sport}/scores/json/ScoresBasic/{date}"
)

// Sport liga o código da liga ao segmento de caminho do fornecedor.
// OddsPath/ScoresPath aceitam os placeholders {sport} e {date}.
type Sport struct {
	Code       domain.Sport `yaml:"code"`
	Path       string       `yaml:"path"`
	OddsPath   string       `yaml:"odds_path"`
	ScoresPath string       `yaml:"scores_path"`
}

type catalogFile struct {
	Sports []Sport `yaml:"sports"`
}

// DefaultCatalog é usado quando SPORTS_CONFIG não está definido.
func DefaultCatalog() []Sport {
	return withDefaults([]Sport{
		{Code: "NBA", Path: "nba"},
		{Code: "NHL", Path: "nhl"},
		{Code: "MLB", Path: "mlb"},
		{Code: "NFL", Path: "nfl"},
	})
}

// LoadCatalog lê o catálogo de esportes de um arquivo YAML.
// Caminho vazio devolve o catálogo padrão.
func LoadCatalog(path string) ([]Sport, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sports config: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse sports config: %w", err)
	}
	if len(f.Sports) == 0 {
		return nil, fmt.Errorf("sports config %s: no sports defined", path)
	}
	seen := make(map[domain.Sport]bool, len(f.Sports))
	for _, s := range f.Sports {
		if s.Code == "" {
			return nil, fmt.Errorf("sports config %s: sport without code", path)
		}
		if seen[s.Code] {
			return nil, fmt.Errorf("sports config %s: duplicate sport %s", path, s.Code)
		}
		seen[s.Code] = true
	}
	return withDefaults(f.Sports), nil
}

func withDefaults(in []Sport) []Sport {
	out := make([]Sport, len(in))
	for i, s := range in {
		if s.Path == "" {
			s.Path = strings.ToLower(string(s.Code))
		}
		if s.OddsPath == "" {
			s.OddsPath = defaultOddsPath
		}
		if s.ScoresPath == "" {
			s.ScoresPath = defaultScoresPath
		}
		out[i] = s
	}
	return out
}

// Lookup procura o esporte pelo código.
func Lookup(catalog []Sport, code domain.Sport) (Sport, bool) {
	for _, s := range catalog {
		if strings.EqualFold(string(s.Code), string(code)) {
			return s, true
		}
	}
	return Sport{}, false
}

func (s Sport) oddsURL(base, date string) string   { return base + expand(s.OddsPath, s.Path, date) }
func (s Sport) scoresURL(base, date string) string { return base + expand(s.ScoresPath, s.Path, date) }

func expand(tmpl, sport, date string) string {
	return strings.NewReplacer("{sport}", sport, "{date}", date).Replace(tmpl)
}
