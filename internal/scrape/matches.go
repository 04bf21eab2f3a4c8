package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greenbier/divrank/internal/errlog"
	"github.com/greenbier/divrank/internal/errs"
	"github.com/greenbier/divrank/internal/httpapi"
	"github.com/greenbier/divrank/internal/matcher"
	"github.com/greenbier/divrank/internal/metrics"
	"github.com/greenbier/divrank/internal/models"
	"github.com/greenbier/divrank/internal/profilecache"
)

var (
	matchRowPattern   = regexp.MustCompile(`(?s)<tr[^>]*class="[^"]*match[^"]*"[^>]*>(.*?)</tr>`)
	matchCellPattern  = regexp.MustCompile(`(?s)<td[^>]*>(.*?)</td>`)
	scoreLinePattern  = regexp.MustCompile(`^\s*(\d+)\s*-\s*(\d+)\s*$`)
)

// matchJSONEntry mirrors the per-game payload shape of a JSON match-
// history page.
type matchJSONEntry struct {
	Date        string `json:"date"`
	Opponent    string `json:"opponent"`
	ScoreFor    int    `json:"score_for"`
	ScoreAgainst int   `json:"score_against"`
	Competition string `json:"competition"`
}

// MatchScrapeResult is the outcome of scraping one team's profile
// page for match history.
type MatchScrapeResult struct {
	Matches []models.Match
	Skipped int // rows dropped for schema errors
}

// profileSearchCandidate is one hit in an upstream profile-search
// response: a team name plus the external id a profile page would be
// fetched under.
type profileSearchCandidate struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

// searchProfile issues an upstream search query for teamName and
// returns the first candidate whose name clears the matcher's looser
// profile-search threshold, so a cache miss (or a 404 invalidation)
// re-resolves the external id instead of failing the team outright.
func searchProfile(ctx context.Context, client *httpapi.Client, m *matcher.Matcher, searchURLTemplate, teamName string) (string, error) {
	queryURL := fmt.Sprintf(searchURLTemplate, url.QueryEscape(teamName))
	body, err := client.Fetch(ctx, queryURL)
	if err != nil {
		return "", fmt.Errorf("scrape: searching profile for %s: %w", teamName, err)
	}

	var candidates []profileSearchCandidate
	if uerr := json.Unmarshal(body, &candidates); uerr != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrMatchSchemaInvalid, uerr)
	}

	for _, c := range candidates {
		if _, ok := m.SearchProfile(c.Name); ok {
			return c.ExternalID, nil
		}
	}
	return "", fmt.Errorf("scrape: no acceptable search candidate for %s: %w", teamName, errs.ErrProfileNotFound)
}

// ScrapeTeamMatches fetches a team's profile page (resolving its
// external id through the profile cache first, or a fresh search
// query on a cache miss) and extracts its match history, resolving
// each opponent name against the division roster via m. A 404 on the
// cached id invalidates the cache entry and re-resolves once via
// search before giving up on the team (§4.1.3 scenario 6).
func ScrapeTeamMatches(
	ctx context.Context,
	client *httpapi.Client,
	cache *profilecache.Cache,
	m *matcher.Matcher,
	team models.Team,
	profileURLTemplate string,
	searchURLTemplate string,
	division models.Division,
	ageOf func(opponentKey string) models.AgeContext,
) (MatchScrapeResult, error) {
	externalID := team.ExternalID
	if externalID == "" {
		if entry, ok := cache.Get(team.TeamKey); ok {
			externalID = entry.ExternalID
		}
	}
	if externalID == "" {
		resolved, serr := searchProfile(ctx, client, m, searchURLTemplate, team.DisplayName)
		if serr != nil {
			return MatchScrapeResult{}, fmt.Errorf("scrape: team %s: %w", team.TeamKey, serr)
		}
		externalID = resolved
	}

	fetchURL := fmt.Sprintf(profileURLTemplate, externalID)
	body, err := client.Fetch(ctx, fetchURL)
	if err != nil {
		if !errors.Is(err, errs.ErrProfileNotFound) {
			return MatchScrapeResult{}, fmt.Errorf("scrape: fetching matches for %s: %w", team.TeamKey, err)
		}
		cache.Invalidate(team.TeamKey)

		resolved, serr := searchProfile(ctx, client, m, searchURLTemplate, team.DisplayName)
		if serr != nil {
			return MatchScrapeResult{}, fmt.Errorf("scrape: fetching matches for %s: %w", team.TeamKey, err)
		}
		externalID = resolved
		body, err = client.Fetch(ctx, fmt.Sprintf(profileURLTemplate, externalID))
		if err != nil {
			return MatchScrapeResult{}, fmt.Errorf("scrape: re-fetching matches for %s: %w", team.TeamKey, err)
		}
	}
	cache.Put(team.TeamKey, externalID)

	var entries []matchJSONEntry
	format := detectFormat(body)
	if format == "json" {
		entries, err = parseMatchesJSON(body)
	} else {
		entries, err = parseMatchesHTML(body)
	}
	if err != nil {
		return MatchScrapeResult{}, fmt.Errorf("scrape: parsing matches for %s: %w", team.TeamKey, err)
	}

	result := MatchScrapeResult{Matches: make([]models.Match, 0, len(entries))}
	for _, e := range entries {
		date, derr := time.Parse("2006-01-02", e.Date)
		if derr != nil {
			result.Skipped++
			continue
		}
		if strings.TrimSpace(e.Opponent) == "" {
			result.Skipped++
			continue
		}

		res, merr := m.Resolve(e.Opponent)
		if merr != nil {
			result.Skipped++
			continue
		}
		metrics.RecordMatchTier(division.Key, string(res.Tier))

		ageCtx := models.AgeContextOwn
		if ageOf != nil {
			ageCtx = ageOf(res.Team.TeamKey)
		}

		match := models.NewMatch(
			date,
			team.TeamKey, team.DisplayName, e.ScoreFor,
			res.Team.TeamKey, res.Team.DisplayName, e.ScoreAgainst,
			e.Competition, fetchURL, ageCtx, res.Confidence,
		)
		result.Matches = append(result.Matches, match)
	}

	return result, nil
}

func parseMatchesJSON(body []byte) ([]matchJSONEntry, error) {
	var entries []matchJSONEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMatchSchemaInvalid, err)
	}
	return entries, nil
}

// parseMatchesHTML extracts rows from a match-history table whose
// cells are [date, opponent, score, competition].
func parseMatchesHTML(body []byte) ([]matchJSONEntry, error) {
	html := string(body)
	rows := matchRowPattern.FindAllStringSubmatch(html, -1)

	entries := make([]matchJSONEntry, 0, len(rows))
	for _, rowHTML := range rows {
		cells := matchCellPattern.FindAllStringSubmatch(rowHTML[1], -1)
		if len(cells) < 3 {
			continue
		}
		date := stripTags(cells[0][1])
		opponent := stripTags(cells[1][1])
		scoreText := stripTags(cells[2][1])

		sm := scoreLinePattern.FindStringSubmatch(scoreText)
		if sm == nil {
			continue
		}
		scoreFor, _ := strconv.Atoi(sm[1])
		scoreAgainst, _ := strconv.Atoi(sm[2])

		competition := ""
		if len(cells) > 3 {
			competition = stripTags(cells[3][1])
		}

		entries = append(entries, matchJSONEntry{
			Date:         date,
			Opponent:     opponent,
			ScoreFor:     scoreFor,
			ScoreAgainst: scoreAgainst,
			Competition:  competition,
		})
	}
	return entries, nil
}

// RunMatchStage scrapes match history for every team, bounding
// concurrency to maxWorkers. Returns the union of all resolved
// matches (deduplication across the two sides of a head-to-head
// happens downstream in the ranking preprocessing stage) plus the
// count of teams that failed outright.
func RunMatchStage(
	ctx context.Context,
	client *httpapi.Client,
	cache *profilecache.Cache,
	m *matcher.Matcher,
	teams []models.Team,
	profileURLTemplate string,
	searchURLTemplate string,
	division models.Division,
	ageOf func(opponentKey string) models.AgeContext,
	maxWorkers int,
	logger *errlog.Logger,
) ([]models.Match, int) {
	var mu sync.Mutex
	var allMatches []models.Match
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for _, t := range teams {
		t := t
		if !t.RankEligible {
			continue
		}
		g.Go(func() error {
			res, err := ScrapeTeamMatches(gctx, client, cache, m, t, profileURLTemplate, searchURLTemplate, division, ageOf)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if logger != nil {
					logger.Record(t.TeamKey, 1, 0, err.Error())
				}
				return nil
			}
			allMatches = append(allMatches, res.Matches...)
			return nil
		})
	}
	_ = g.Wait()

	return allMatches, failed
}
