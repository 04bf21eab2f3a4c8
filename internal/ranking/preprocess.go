// Package ranking is the Ranking Engine (component G): the iterative
// opponent-strength-aware rating computation that turns a division's
// gold match table into per-team offense, defense, strength-of-
// schedule, and composite power scores.
//
// Grounded on the OPR/DPR-style ranking calculator pattern found in
// the wider retrieval pack (indexed team vectors, per-match symmetric
// updates), restructured around explicit record types end to end so
// the wide-to-long match-to-view explosion happens exactly once, at
// the boundary between the scraping pipeline and this package — per
// the flat-vector-indexed-teams design note carried over from the
// reference ingestion service's typed repository layer.
package ranking

import (
	"sort"
	"time"

	"github.com/greenbier/divrank/internal/models"
)

const (
	scoreCap        = 6
	maxViewsPerTeam = 30
	taperTopN       = 10
	taperMidN       = 25 // views ranked 11..25
)

// tieredWeights returns the fraction of total weight mass assigned to
// views ranked [0, n) in recency order: top 10 get 60%, 11-25 get
// 30%, 26-30 get 10%. Teams with fewer views than a segment spans get
// that segment's mass spread only across what exists; a fully empty
// segment contributes no weight.
func tieredWeights(n int) []float64 {
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}

	topEnd := min(n, taperTopN)
	midEnd := min(n, taperMidN)

	if topEnd > 0 {
		per := 0.60 / float64(topEnd)
		for i := 0; i < topEnd; i++ {
			weights[i] = per
		}
	}
	if midEnd > topEnd {
		per := 0.30 / float64(midEnd-topEnd)
		for i := topEnd; i < midEnd; i++ {
			weights[i] = per
		}
	}
	if n > midEnd {
		per := 0.10 / float64(n-midEnd)
		for i := midEnd; i < n; i++ {
			weights[i] = per
		}
	}
	return weights
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BuildTeamViews explodes matches into directed per-team views,
// filtered to the ranking window, then caps and weights each team's
// view list per §4.2.2. windowEnd is normally the max match date in
// the input; matches older than windowDays before it are dropped.
// Rows repeating an earlier row's (date, team_a_key, team_b_key) are
// collapsed to the first, and each team's tiered weights are rescaled
// to sum to 1.
//
// A match is dropped entirely if neither side is a roster-resolved
// team (§4.2.2 step 2, "keep only matches where at least one side is
// in the master roster"); in practice this only excludes the
// degenerate case of two synthesized external opponents. A
// synthesized external side (models.IsExternalTeamKey) never becomes
// a views map key itself: it is not a rated team, only an opponent
// endpoint recorded on the roster side's view, so SolveSOS's
// default-opponent-strength seeding (§4.2.5) is the only rating it
// ever receives.
func BuildTeamViews(matches []models.Match, windowDays int, windowEnd time.Time) map[string][]models.TeamView {
	cutoff := windowEnd.AddDate(0, 0, -windowDays)

	byTeam := make(map[string][]models.TeamView)
	seen := make(map[[3]string]bool)
	for _, m := range matches {
		if m.Date.Before(cutoff) {
			continue
		}
		pk := [3]string{m.Date.Format("2006-01-02"), m.TeamAKey, m.TeamBKey}
		if seen[pk] {
			continue
		}
		seen[pk] = true
		aExternal := models.IsExternalTeamKey(m.TeamAKey)
		bExternal := models.IsExternalTeamKey(m.TeamBKey)
		if aExternal && bExternal {
			continue
		}

		if !aExternal {
			byTeam[m.TeamAKey] = append(byTeam[m.TeamAKey], models.TeamView{
				TeamKey: m.TeamAKey, OpponentKey: m.TeamBKey,
				GoalsFor: m.ScoreA, GoalsAgainst: m.ScoreB,
				Date: m.Date, AgeContext: m.AgeContext,
			})
		}
		if !bExternal {
			byTeam[m.TeamBKey] = append(byTeam[m.TeamBKey], models.TeamView{
				TeamKey: m.TeamBKey, OpponentKey: m.TeamAKey,
				GoalsFor: m.ScoreB, GoalsAgainst: m.ScoreA,
				Date: m.Date, AgeContext: mirrorAgeContext(m.AgeContext),
			})
		}
	}

	for team, views := range byTeam {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Date.After(views[j].Date)
		})
		if len(views) > maxViewsPerTeam {
			views = views[:maxViewsPerTeam]
		}
		weights := tieredWeights(len(views))
		var total float64
		for _, w := range weights {
			total += w
		}
		for i := range views {
			views[i].Weight = weights[i] / total
		}
		byTeam[team] = views
	}
	return byTeam
}

// mirrorAgeContext flips an age context to the opponent's perspective:
// if team A's match against B is tagged "older" (B plays up from A's
// own division into an older one — i.e. A is the younger side), then
// from B's perspective the opponent A is "younger".
func mirrorAgeContext(ctx models.AgeContext) models.AgeContext {
	switch ctx {
	case models.AgeContextOlder:
		return models.AgeContextYounger
	case models.AgeContextYounger:
		return models.AgeContextOlder
	default:
		return ctx
	}
}

// WeightSum reports the sum of a team's view weights, used by tests
// to check invariant I7 (sums to 1.0 within tolerance).
func WeightSum(views []models.TeamView) float64 {
	var sum float64
	for _, v := range views {
		sum += v.Weight
	}
	return sum
}

func capScore(v int) int {
	if v > scoreCap {
		return scoreCap
	}
	return v
}
