package ranking

import (
	"math"
	"time"

	"github.com/greenbier/divrank/internal/models"
)

// RawMetrics computes the per-team offense/defense raw scores and
// W/L/T counters from its tapered, capped view list (§4.2.3).
func RawMetrics(teamKey string, views []models.TeamView, now time.Time, activeMinGames, activeMaxDaysSinceGame int) models.RatingState {
	state := models.RatingState{TeamKey: teamKey}

	var lastGame time.Time
	for _, v := range views {
		state.OffenseRaw += v.Weight * float64(capScore(v.GoalsFor))
		state.DefenseRaw += v.Weight * float64(capScore(v.GoalsAgainst))
		state.GamesPlayed++
		state.GoalsFor += v.GoalsFor
		state.GoalsAgainst += v.GoalsAgainst

		switch {
		case v.GoalsFor > v.GoalsAgainst:
			state.Wins++
		case v.GoalsFor < v.GoalsAgainst:
			state.Losses++
		default:
			state.Ties++
		}

		if v.AgeContext == models.AgeContextOlder || v.AgeContext == models.AgeContextYounger {
			state.CrossAgeGames++
		}

		if v.Date.After(lastGame) {
			lastGame = v.Date
		}
	}
	state.LastGameDate = lastGame
	state.Status = assignStatus(state.GamesPlayed, lastGame, now, activeMinGames, activeMaxDaysSinceGame)
	return state
}

// assignStatus implements §4.2.3's lifecycle bucketing, with the
// boundary at exactly activeMaxDaysSinceGame days inclusive counting
// as Active.
func assignStatus(gamesPlayed int, lastGame, now time.Time, minGames, maxDaysSinceGame int) models.Status {
	if gamesPlayed < minGames {
		return models.StatusProvisional
	}
	daysSince := int(now.Sub(lastGame).Hours() / 24)
	if daysSince <= maxDaysSinceGame {
		return models.StatusActive
	}
	return models.StatusInactive
}

// mean and stddev are population statistics (not sample, i.e. divide
// by n not n-1), matching §4.2.4's μ, σ definition.
func meanStdDev(values []float64) (mean, stddev float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	stddev = math.Sqrt(variance)
	return mean, stddev
}

// LogisticNormalize maps raw metric values to [0,1] via the
// population logistic transform of §4.2.4. When σ=0 every team gets
// 0.5 (no discriminating signal).
func LogisticNormalize(raw map[string]float64) map[string]float64 {
	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		values = append(values, v)
	}
	mean, stddev := meanStdDev(values)

	norm := make(map[string]float64, len(raw))
	if stddev == 0 {
		for k := range raw {
			norm[k] = 0.5
		}
		return norm
	}

	scale := 1.5 * stddev
	for k, v := range raw {
		norm[k] = 1.0 / (1.0 + math.Exp(-(v-mean)/scale))
	}
	return norm
}
