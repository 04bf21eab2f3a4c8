// Package matcher implements the Tiered Matcher (component C): given
// an opponent name scraped out of a match-history page, resolve it to
// a known Team in the division registry, falling back through
// progressively looser tiers before synthesizing an external team.
//
// Grounded on the tiered team-matching job pattern (exact id lookup,
// then fuzzy candidate scoring) found in the wider retrieval pack,
// adapted here to run entirely in-memory against the roster loaded
// for one division rather than against a database.
package matcher

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/greenbier/divrank/internal/models"
	"github.com/greenbier/divrank/internal/normalize"
)

// Tier labels which matching strategy resolved a name, recorded on
// the gold match row as match_confidence.
type Tier string

const (
	TierExact      Tier = "exact"
	TierNormalized Tier = "normalized"
	TierFuzzy      Tier = "fuzzy"
	TierExternal   Tier = "external"
)

// Result is the outcome of resolving one raw opponent name.
type Result struct {
	Team       models.Team
	Tier       Tier
	Score      float64 // 1.0 for exact/normalized, IoU score for fuzzy, 0 for external
	Confidence string  // formatted for Match.MatchConfidence
}

// Matcher resolves raw opponent names against one division's roster.
type Matcher struct {
	byExactName map[string]models.Team // DisplayName -> Team
	byKey       map[string]models.Team // normalize.Key(DisplayName) -> Team
	tokenSets   map[string]map[string]struct{}
	teams       []models.Team

	fuzzyRosterThreshold float64
	fuzzySearchThreshold float64
	nextExternalID       int
}

// New builds a Matcher over a division's roster.
func New(roster []models.Team, fuzzyRosterThreshold, fuzzySearchThreshold float64) *Matcher {
	m := &Matcher{
		byExactName:           make(map[string]models.Team, len(roster)),
		byKey:                 make(map[string]models.Team, len(roster)),
		tokenSets:             make(map[string]map[string]struct{}, len(roster)),
		teams:                 roster,
		fuzzyRosterThreshold:  fuzzyRosterThreshold,
		fuzzySearchThreshold:  fuzzySearchThreshold,
	}
	for _, t := range roster {
		m.byExactName[t.DisplayName] = t
		if t.TeamKey != "" {
			m.byKey[t.TeamKey] = t
			m.tokenSets[t.TeamKey] = tokenSet(t.TeamKey)
		}
	}
	return m
}

// Resolve matches a raw opponent name against the roster, trying
// exact, normalized, and fuzzy tiers in order before synthesizing an
// external team placeholder.
func (m *Matcher) Resolve(raw string) (Result, error) {
	if t, ok := m.byExactName[raw]; ok {
		return Result{Team: t, Tier: TierExact, Score: 1.0, Confidence: string(TierExact)}, nil
	}

	key, err := normalize.Key(raw)
	if err != nil {
		return Result{}, err
	}
	if t, ok := m.byKey[key]; ok {
		return Result{Team: t, Tier: TierNormalized, Score: 1.0, Confidence: string(TierNormalized)}, nil
	}

	if best, score, ok := m.bestFuzzyMatch(key, m.fuzzyRosterThreshold); ok {
		return Result{
			Team:       best,
			Tier:       TierFuzzy,
			Score:      score,
			Confidence: fmt.Sprintf("fuzzy:%.2f", score),
		}, nil
	}

	ext := m.synthesizeExternal(raw, key)
	return Result{
		Team:       ext,
		Tier:       TierExternal,
		Score:      0,
		Confidence: fmt.Sprintf("external:%s", ext.TeamKey),
	}, nil
}

// SearchProfile resolves a team name against the roster using the
// looser profile-search threshold (internal/scrape's profile search
// uses this to decide whether a search candidate is an acceptable
// match before accepting its external id).
func (m *Matcher) SearchProfile(raw string) (Result, bool) {
	key, err := normalize.Key(raw)
	if err != nil {
		return Result{}, false
	}
	if t, ok := m.byKey[key]; ok {
		return Result{Team: t, Tier: TierNormalized, Score: 1.0, Confidence: string(TierNormalized)}, true
	}
	if best, score, ok := m.bestFuzzyMatch(key, m.fuzzySearchThreshold); ok {
		return Result{Team: best, Tier: TierFuzzy, Score: score, Confidence: fmt.Sprintf("fuzzy:%.2f", score)}, true
	}
	return Result{}, false
}

// bestFuzzyMatch scores key against every roster token set using
// token-set intersection-over-union, with normalized Levenshtein
// distance as a tie-break when two candidates share the top IoU
// score. Returns the winner if it clears threshold.
func (m *Matcher) bestFuzzyMatch(key string, threshold float64) (models.Team, float64, bool) {
	type candidate struct {
		team models.Team
		iou  float64
		lev  float64 // similarity, higher is closer
	}

	queryTokens := tokenSet(key)
	var candidates []candidate
	for _, t := range m.teams {
		ts, ok := m.tokenSets[t.TeamKey]
		if !ok {
			continue
		}
		iou := tokenSetIoU(queryTokens, ts)
		if iou <= 0 {
			continue
		}
		dist := levenshtein.ComputeDistance(key, t.TeamKey)
		maxLen := len(key)
		if len(t.TeamKey) > maxLen {
			maxLen = len(t.TeamKey)
		}
		sim := 1.0
		if maxLen > 0 {
			sim = 1.0 - float64(dist)/float64(maxLen)
		}
		candidates = append(candidates, candidate{team: t, iou: iou, lev: sim})
	}
	if len(candidates) == 0 {
		return models.Team{}, 0, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].iou != candidates[j].iou {
			return candidates[i].iou > candidates[j].iou
		}
		return candidates[i].lev > candidates[j].lev
	})

	top := candidates[0]
	if top.iou < threshold {
		return models.Team{}, 0, false
	}
	return top.team, top.iou, true
}

// synthesizeExternal mints a non-roster-eligible Team for an opponent
// that never matched, so match history can still reference it by key
// without polluting the ranked roster. Its team_key carries the
// models.ExternalTeamKeyPrefix so downstream ranking code can tell an
// unresolved opponent apart from a real roster team without a second
// lookup table.
func (m *Matcher) synthesizeExternal(raw, key string) models.Team {
	if t, ok := m.byKey[key]; ok {
		return t
	}
	m.nextExternalID--
	extKey := models.ExternalTeamKeyPrefix + key
	t := models.Team{
		ID:           m.nextExternalID,
		TeamKey:      extKey,
		DisplayName:  raw,
		RankEligible: false,
	}
	m.byKey[key] = t
	m.tokenSets[extKey] = tokenSet(key)
	m.teams = append(m.teams, t)
	return t
}

func tokenSet(key string) map[string]struct{} {
	tokens, err := normalize.Tokens(key)
	if err != nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// tokenSetIoU computes intersection-over-union between two token
// sets.
func tokenSetIoU(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
