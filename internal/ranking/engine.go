package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/greenbier/divrank/internal/models"
)

// Result is the full output of one ranking run: the ordered output
// rows plus a summary for the CLI/log layer.
type Result struct {
	Rows       []models.RankingRow
	Iterations int
	Converged  bool
}

// Run executes the full ranking pipeline (§4.2) over matches for one
// division's roster: pre-processing, raw metrics, logistic
// normalization, iterative SOS, and composite scoring.
//
// roster is the set of rank-eligible teams to emit rows for (§4.2.8:
// every roster team with at least one game in the window appears,
// even Provisional/Inactive; roster teams with no games (I4) and
// external-only teams never appear). now anchors the Active/Inactive
// day-count and is normally time.Now(), injected here for determinism
// in tests.
func Run(matches []models.Match, roster []models.Team, cfg Config, now time.Time) (Result, error) {
	windowEnd := maxMatchDate(matches, now)
	views := BuildTeamViews(matches, cfg.WindowDays, windowEnd)

	states := make(map[string]models.RatingState, len(roster))
	gamesPlayed := make(map[string]int, len(views))
	for team, v := range views {
		gamesPlayed[team] = len(v)
	}

	offenseRaw := make(map[string]float64)
	defenseRaw := make(map[string]float64)
	for _, t := range roster {
		teamViews := views[t.TeamKey]
		state := RawMetrics(t.TeamKey, teamViews, now, cfg.ActiveMinGames, cfg.ActiveMaxDaysSinceGame)
		states[t.TeamKey] = state
		offenseRaw[t.TeamKey] = state.OffenseRaw
		defenseRaw[t.TeamKey] = state.DefenseRaw
	}

	sosCfg := SOSConfig{
		K:                       cfg.EloK,
		LearningRateBase:        cfg.LearningRateBase,
		LearningRateAlpha:       cfg.LearningRateAlpha,
		LearningRateBeta:        cfg.LearningRateBeta,
		CrossAgeMultiplier:      cfg.CrossAgeMultiplier,
		DefaultOpponentStrength: cfg.DefaultOpponentStrength,
		IterationCap:            cfg.SOSIterationCap,
		ConvergenceDelta:        cfg.SOSConvergenceDelta,
	}
	sosResult := SolveSOS(views, gamesPlayed, sosCfg)
	sosRaw := AggregateSOS(views, sosResult.Ratings)

	offenseNorm := LogisticNormalize(offenseRaw)
	defenseNormRaw := LogisticNormalize(defenseRaw)
	defenseNorm := make(map[string]float64, len(defenseNormRaw))
	for k, v := range defenseNormRaw {
		defenseNorm[k] = 1.0 - v
	}
	sosNorm := LogisticNormalize(sosRaw)

	rows := make([]models.RankingRow, 0, len(roster))
	for _, t := range roster {
		state := states[t.TeamKey]
		if state.GamesPlayed == 0 {
			continue // I4: no-game teams never appear in ranking output
		}

		state.OffenseNorm = offenseNorm[t.TeamKey]
		state.DefenseNorm = defenseNorm[t.TeamKey]
		state.SOSNorm = sosNorm[t.TeamKey]
		state.SOSRaw = sosRaw[t.TeamKey]

		power := 0.20*state.OffenseNorm + 0.20*state.DefenseNorm + 0.60*state.SOSNorm
		penalty := math.Sqrt(math.Min(float64(state.GamesPlayed), 20) / 20)
		state.PowerScore = power
		state.GamesPenalty = penalty
		state.PowerScoreAdj = power * penalty

		crossStateGames := countCrossState(views[t.TeamKey], t.State, roster)
		state.CrossStateGames = crossStateGames

		rows = append(rows, toRankingRow(t, state, crossStateGames))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].PowerScoreAdj != rows[j].PowerScoreAdj {
			return rows[i].PowerScoreAdj > rows[j].PowerScoreAdj
		}
		if rows[i].GamesPlayed != rows[j].GamesPlayed {
			return rows[i].GamesPlayed > rows[j].GamesPlayed
		}
		return rows[i].TeamKey < rows[j].TeamKey
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}

	return Result{Rows: rows, Iterations: sosResult.Iterations, Converged: sosResult.Converged}, nil
}

func maxMatchDate(matches []models.Match, fallback time.Time) time.Time {
	max := fallback
	found := false
	for _, m := range matches {
		if !found || m.Date.After(max) {
			max = m.Date
			found = true
		}
	}
	return max
}

func countCrossState(views []models.TeamView, homeState string, roster []models.Team) int {
	if homeState == "" {
		return 0
	}
	stateByKey := make(map[string]string, len(roster))
	for _, t := range roster {
		stateByKey[t.TeamKey] = t.State
	}
	count := 0
	for _, v := range views {
		if s, ok := stateByKey[v.OpponentKey]; ok && s != "" && s != homeState {
			count++
		}
	}
	return count
}

func toRankingRow(t models.Team, s models.RatingState, crossStateGames int) models.RankingRow {
	row := models.RankingRow{
		TeamKey:         t.TeamKey,
		TeamName:        t.DisplayName,
		State:           t.State,
		Status:          string(s.Status),
		GamesPlayed:     s.GamesPlayed,
		Wins:            s.Wins,
		Losses:          s.Losses,
		Ties:            s.Ties,
		GoalsFor:        s.GoalsFor,
		GoalsAgainst:    s.GoalsAgainst,
		OffenseRaw:      s.OffenseRaw,
		DefenseRaw:      s.DefenseRaw,
		SOSRaw:          s.SOSRaw,
		OffenseNorm:     s.OffenseNorm,
		DefenseNorm:     s.DefenseNorm,
		SOSNorm:         s.SOSNorm,
		PowerScore:      s.PowerScore,
		GamesPenalty:    s.GamesPenalty,
		PowerScoreAdj:   s.PowerScoreAdj,
		CrossAgeGames:   s.CrossAgeGames,
		CrossStateGames: crossStateGames,
	}
	if !s.LastGameDate.IsZero() {
		row.LastGameDate = s.LastGameDate.Format("2006-01-02")
	}
	if s.GamesPlayed > 0 {
		row.CrossAgePct = float64(s.CrossAgeGames) / float64(s.GamesPlayed)
		row.CrossStatePct = float64(crossStateGames) / float64(s.GamesPlayed)
	}
	return row
}

// Config is the subset of internal/config.Config the ranking engine
// needs, restated here to keep this package free of a dependency on
// the top-level config package's envconfig tags.
type Config struct {
	WindowDays              int
	ActiveMinGames          int
	ActiveMaxDaysSinceGame  int
	DefaultOpponentStrength float64
	SOSIterationCap         int
	SOSConvergenceDelta     float64
	EloK                    float64
	LearningRateBase        float64
	LearningRateAlpha       float64
	LearningRateBeta        float64
	CrossAgeMultiplier      float64
}
