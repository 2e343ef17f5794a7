package topics

const (
	// Ingestão
	GamesIngested = "games_ingested"

	// Resultado e liquidação
	GamesResolved = "games_resolved"
	BetsSettled   = "bets_settled"
)

// All lista os tópicos na ordem em que são criados em ambiente local.
var All = []string{GamesIngested, GamesResolved, BetsSettled}
