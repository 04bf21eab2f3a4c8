package ranking

import (
	"math"
	"time"

	"github.com/greenbier/divrank/internal/models"
)

// SOSConfig bundles the tuning constants of §4.2.5 so the solver
// signature stays small; values are sourced from internal/config at
// call sites.
type SOSConfig struct {
	K                       float64
	LearningRateBase        float64
	LearningRateAlpha       float64
	LearningRateBeta        float64
	CrossAgeMultiplier      float64
	DefaultOpponentStrength float64
	IterationCap            int
	ConvergenceDelta        float64
}

// SOSResult is the outcome of one solver run: converged ratings plus
// whether the iteration cap was hit before the convergence threshold.
type SOSResult struct {
	Ratings   map[string]float64
	Iterations int
	Converged bool
}

// SolveSOS runs the iterative opponent-strength solver of §4.2.5.
// views is every team's tapered view list keyed by team_key; teams
// not present in views (no games) still receive an initial rating so
// they can serve as an opponent reference, though they will never be
// updated themselves.
func SolveSOS(views map[string][]models.TeamView, gamesPlayed map[string]int, cfg SOSConfig) SOSResult {
	ratings := initializeRatings(views, gamesPlayed, cfg.DefaultOpponentStrength)

	converged := false
	iterations := 0
	for iter := 0; iter < cfg.IterationCap; iter++ {
		iterations = iter + 1
		next := make(map[string]float64, len(ratings))
		for k, v := range ratings {
			next[k] = v
		}

		seen := make(map[viewKey]bool)
		for team, teamViews := range views {
			for _, v := range teamViews {
				k := matchKey(team, v.OpponentKey, v)
				if seen[k] {
					continue
				}
				seen[k] = true

				applyUpdate(next, ratings, team, v, gamesPlayed, cfg)
				if mirror, ok := findMirrorView(views, v.OpponentKey, team, v); ok {
					applyUpdate(next, ratings, v.OpponentKey, mirror, gamesPlayed, cfg)
				}
			}
		}

		delta := meanAbsDelta(ratings, next)
		ratings = next
		if delta < cfg.ConvergenceDelta {
			converged = true
			break
		}
	}

	return SOSResult{Ratings: ratings, Iterations: iterations, Converged: converged}
}

// viewKey identifies one individual match (not a team pair) so that
// two distinct matches between the same two teams each get their own
// update per iteration, instead of the second collapsing into a no-op
// against the first's dedup entry. Goals are reordered alongside the
// team keys so the same match reached from either team's view list
// hashes to one entry.
type viewKey struct {
	teamLo, teamHi   string
	date             time.Time
	goalsLo, goalsHi int
}

func matchKey(team, opponent string, v models.TeamView) viewKey {
	lo, hi := team, opponent
	goalsLo, goalsHi := v.GoalsFor, v.GoalsAgainst
	if lo > hi {
		lo, hi = hi, lo
		goalsLo, goalsHi = goalsHi, goalsLo
	}
	return viewKey{teamLo: lo, teamHi: hi, date: v.Date, goalsLo: goalsLo, goalsHi: goalsHi}
}

// findMirrorView locates opponent's view of its match against team,
// so both sides of a head-to-head update symmetrically within the
// same iteration.
func findMirrorView(views map[string][]models.TeamView, opponent, team string, view models.TeamView) (models.TeamView, bool) {
	for _, v := range views[opponent] {
		if v.OpponentKey == team && v.Date.Equal(view.Date) &&
			v.GoalsFor == view.GoalsAgainst && v.GoalsAgainst == view.GoalsFor {
			return v, true
		}
	}
	return models.TeamView{}, false
}

// applyUpdate adds one Elo-like rating update for the directed view
// (team, view) into next, reading current ratings from cur so all
// updates within an iteration see the same snapshot; several matches
// of one team in an iteration accumulate in next.
func applyUpdate(next, cur map[string]float64, team string, v models.TeamView, gamesPlayed map[string]int, cfg SOSConfig) {
	ratingTeam := cur[team]
	ratingOpp := cur[v.OpponentKey]

	expected := 1.0 / (1.0 + math.Exp(-cfg.K*(ratingTeam-ratingOpp)))

	var observed float64
	switch {
	case v.GoalsFor > v.GoalsAgainst:
		observed = 1.0
	case v.GoalsFor < v.GoalsAgainst:
		observed = 0.0
	default:
		observed = 0.5
	}

	margin := float64(v.GoalsFor - v.GoalsAgainst)
	var marginMult float64
	if v.GoalsFor == v.GoalsAgainst {
		marginMult = 1.0
	} else {
		clamped := clampFloat(margin, -6, 6)
		marginMult = clampFloat(1+0.1*clamped, 0.4, 1.6)
	}

	crossAgeMult := 1.0
	if v.AgeContext == models.AgeContextOlder {
		crossAgeMult = cfg.CrossAgeMultiplier
	}

	gap := math.Max(0, ratingTeam-ratingOpp)
	games := float64(gamesPlayed[team])
	eta := cfg.LearningRateBase *
		(1.0 / (1.0 + math.Pow(gap, cfg.LearningRateAlpha))) *
		math.Min(1.0, math.Pow(games/8.0, cfg.LearningRateBeta))

	next[team] += eta * crossAgeMult * (observed*marginMult - expected)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// initializeRatings seeds every team's (and every referenced
// opponent's) starting rating from win percentage mapped to
// [0.2, 0.8], then recenters the population mean to 0.5. External
// opponents with no games of their own get the configured default
// strength instead.
func initializeRatings(views map[string][]models.TeamView, gamesPlayed map[string]int, defaultStrength float64) map[string]float64 {
	ratings := make(map[string]float64)
	referenced := make(map[string]bool)

	for team, teamViews := range views {
		referenced[team] = true
		var winPoints float64
		total := 0
		for _, v := range teamViews {
			total++
			switch {
			case v.GoalsFor > v.GoalsAgainst:
				winPoints += 1.0
			case v.GoalsFor == v.GoalsAgainst:
				winPoints += 0.5
			}
			referenced[v.OpponentKey] = true
		}
		if total == 0 {
			ratings[team] = 0.5
			continue
		}
		winPct := winPoints / float64(total)
		ratings[team] = 0.2 + 0.6*winPct
	}

	for k := range referenced {
		if _, ok := ratings[k]; !ok {
			if _, hasGames := views[k]; hasGames {
				continue
			}
			ratings[k] = defaultStrength
		}
	}

	var sum float64
	var n int
	for team := range views {
		sum += ratings[team]
		n++
	}
	if n > 0 {
		mean := sum / float64(n)
		shift := 0.5 - mean
		for team := range views {
			ratings[team] += shift
		}
	}

	return ratings
}

func meanAbsDelta(a, b map[string]float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for k, v := range a {
		sum += math.Abs(b[k] - v)
	}
	return sum / float64(len(a))
}

// AggregateSOS computes each team's sos_raw as the weighted mean of
// its opponents' converged ratings (§4.2.5), clipping each per-view
// opponent rating into [μ−2.5σ, μ+2.5σ] before averaging to suppress
// single-opponent dominance.
func AggregateSOS(views map[string][]models.TeamView, ratings map[string]float64) map[string]float64 {
	allOppRatings := make([]float64, 0, len(ratings))
	for _, r := range ratings {
		allOppRatings = append(allOppRatings, r)
	}
	mean, stddev := meanStdDev(allOppRatings)
	lo, hi := mean-2.5*stddev, mean+2.5*stddev

	sos := make(map[string]float64, len(views))
	for team, teamViews := range views {
		var weighted float64
		for _, v := range teamViews {
			r := ratings[v.OpponentKey]
			if stddev > 0 {
				r = clampFloat(r, lo, hi)
			}
			weighted += v.Weight * r
		}
		sos[team] = weighted
	}
	return sos
}
