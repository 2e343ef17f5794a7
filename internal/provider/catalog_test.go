package provider_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-settlement/internal/provider"
)

func TestLoadCatalog_Default(t *testing.T) {
	cat, err := provider.LoadCatalog("")
	require.NoError(t, err)
	require.Len(t, cat, 4)

	mlb, ok := provider.Lookup(cat, "mlb")
	require.True(t, ok)
	assert.Equal(t, "mlb", mlb.Path)
}

func TestLoadCatalog_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sports.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sports:
  - code: NBA
  - code: WNBA
    path: wnba
    scores_path: /v3/{sport}/scores/json/GamesByDate/{date}
`), 0o600))

	cat, err := provider.LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat, 2)
	assert.Equal(t, "nba", cat[0].Path)
	assert.Equal(t, "/v3/{sport}/scores/json/GamesByDate/{date}", cat[1].ScoresPath)
	assert.NotEmpty(t, cat[1].OddsPath)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("sports: []\n"), 0o600))
	_, err := provider.LoadCatalog(empty)
	assert.Error(t, err)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("sports:\n  - code: NBA\n  - code: NBA\n"), 0o600))
	_, err = provider.LoadCatalog(dup)
	assert.Error(t, err)

	_, err = provider.LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
