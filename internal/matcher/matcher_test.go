package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbier/divrank/internal/models"
	"github.com/greenbier/divrank/internal/normalize"
)

func buildRoster(t *testing.T, names ...string) []models.Team {
	t.Helper()
	roster := make([]models.Team, 0, len(names))
	for i, n := range names {
		key, err := normalize.Key(n)
		require.NoError(t, err)
		roster = append(roster, models.Team{
			ID: i + 1, TeamKey: key, DisplayName: n, RankEligible: true,
		})
	}
	return roster
}

func TestResolve_Exact(t *testing.T) {
	roster := buildRoster(t, "Phoenix United 2015 Premier")
	m := New(roster, 0.85, 0.60)

	res, err := m.Resolve("Phoenix United 2015 Premier")
	require.NoError(t, err)
	assert.Equal(t, TierExact, res.Tier)
	assert.Equal(t, 1.0, res.Score)
}

func TestResolve_Normalized(t *testing.T) {
	roster := buildRoster(t, "Desert United SC")
	m := New(roster, 0.85, 0.60)

	res, err := m.Resolve("SC Desert United")
	require.NoError(t, err)
	assert.Equal(t, TierNormalized, res.Tier)
}

func TestResolve_FuzzyBoundary(t *testing.T) {
	roster := buildRoster(t, "Phoenix United 2015 Premier")
	m := New(roster, 0.85, 0.60)

	res, err := m.Resolve("PHX UTD 2015 PREMIER")
	require.NoError(t, err)
	assert.NotEqual(t, TierExternal, res.Tier)
	assert.GreaterOrEqual(t, res.Score, 0.85)
}

func TestResolve_SynthesizesExternal(t *testing.T) {
	roster := buildRoster(t, "Phoenix United 2015 Premier")
	m := New(roster, 0.85, 0.60)

	res, err := m.Resolve("Some Totally Unrelated Club")
	require.NoError(t, err)
	assert.Equal(t, TierExternal, res.Tier)
	assert.False(t, res.Team.RankEligible)
}

func TestResolve_EmptyName(t *testing.T) {
	roster := buildRoster(t, "Phoenix United 2015 Premier")
	m := New(roster, 0.85, 0.60)

	_, err := m.Resolve("   ")
	assert.Error(t, err)
}

func TestMatcher_Monotone(t *testing.T) {
	roster := buildRoster(t, "Phoenix United 2015 Premier")
	m := New(roster, 0.85, 0.60)

	before, err := m.Resolve("Phoenix United 2015 Premier")
	require.NoError(t, err)
	require.Equal(t, TierExact, before.Tier)

	roster2 := buildRoster(t, "Phoenix United 2015 Premier", "Phoenix United 2015 Select")
	m2 := New(roster2, 0.85, 0.60)
	after, err := m2.Resolve("Phoenix United 2015 Premier")
	require.NoError(t, err)

	assert.Equal(t, TierExact, after.Tier)
	assert.GreaterOrEqual(t, after.Score, before.Score)
}

func TestSearchProfile_LooserThreshold(t *testing.T) {
	roster := buildRoster(t, "Phoenix United 2015 Premier")
	m := New(roster, 0.85, 0.60)

	res, ok := m.SearchProfile("Phoenix Utd Premier 15")
	require.True(t, ok)
	assert.Equal(t, "Phoenix United 2015 Premier", res.Team.DisplayName)
}
