// Package scrape implements the Roster Scraper (D) and Match-History
// Scraper (E): the two-stage bounded worker pool that turns a
// division's RosterURL into a bronze team list, then turns each
// team's profile page into gold match rows.
//
// Grounded on the zero-dependency scraper's worker-pool-with-jitter
// shape (teams iterated behind a bounded semaphore, a dedicated
// delay before every fetch) found in the broader retrieval pack,
// restructured here onto golang.org/x/sync/errgroup so pool-wide
// cancellation reaches every worker through one shared context.
// Per-team and per-division failures are collected and counted; they
// do not cancel the pool.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greenbier/divrank/internal/errs"
	"github.com/greenbier/divrank/internal/httpapi"
	"github.com/greenbier/divrank/internal/models"
	"github.com/greenbier/divrank/internal/normalize"
)

var (
	rosterRowPattern  = regexp.MustCompile(`(?s)<tr[^>]*>(.*?)</tr>`)
	rosterCellPattern = regexp.MustCompile(`(?s)<td[^>]*>(.*?)</td>`)
	tagStripper       = regexp.MustCompile(`<[^>]*>`)
	externalIDPattern = regexp.MustCompile(`team[/_-]id[=/]?(\w+)`)
)

// RosterResult is the outcome of scraping one division's roster.
type RosterResult struct {
	Rows        []models.RosterRow
	Teams       []models.Team
	FailedCount int
	TotalCount  int
}

// ScrapeRoster fetches divisionURL and extracts one row per team. It
// supports both a JSON array-of-objects payload and an HTML table,
// auto-detecting by content; Division.RosterFormat can force one or
// the other.
func ScrapeRoster(ctx context.Context, client *httpapi.Client, division models.Division, scrapedAt time.Time) (RosterResult, error) {
	body, err := client.Fetch(ctx, division.RosterURL)
	if err != nil {
		return RosterResult{}, fmt.Errorf("scrape: fetching roster for %s: %w", division.Key, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return RosterResult{}, fmt.Errorf("scrape: roster for %s: %w", division.Key, errs.ErrEmptyUpstream)
	}

	var rows []models.RosterRow
	format := division.RosterFormat
	if format == "" || format == "auto" {
		format = detectFormat(body)
	}

	switch format {
	case "json":
		rows, err = parseRosterJSON(body)
	default:
		rows, err = parseRosterHTML(body)
	}
	if err != nil {
		return RosterResult{}, fmt.Errorf("scrape: parsing roster for %s: %w", division.Key, err)
	}
	if len(rows) == 0 {
		return RosterResult{}, fmt.Errorf("scrape: roster for %s: %w", division.Key, errs.ErrEmptyUpstream)
	}

	stamp := scrapedAt.UTC().Format(time.RFC3339)
	teams := make([]models.Team, 0, len(rows))
	for i := range rows {
		rows[i].ScrapedAt = stamp

		key, kerr := normalize.Key(rows[i].TeamName)
		if kerr != nil {
			continue
		}
		rows[i].TeamKey = key

		teams = append(teams, models.Team{
			ID:           i + 1,
			TeamKey:      key,
			DisplayName:  rows[i].TeamName,
			Club:         rows[i].Club,
			State:        rows[i].State,
			ExternalID:   rows[i].ExternalID,
			Division:     division.Key,
			RankEligible: true,
		})
	}

	return RosterResult{Rows: rows, Teams: teams, TotalCount: len(rows)}, nil
}

func detectFormat(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return "json"
	}
	return "html"
}

type rosterJSONEntry struct {
	Name       string `json:"name"`
	TeamName   string `json:"team_name"`
	Club       string `json:"club"`
	State      string `json:"state"`
	ExternalID string `json:"id"`
	TeamID     string `json:"team_id"`
}

func parseRosterJSON(body []byte) ([]models.RosterRow, error) {
	var entries []rosterJSONEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMatchSchemaInvalid, err)
	}

	rows := make([]models.RosterRow, 0, len(entries))
	for _, e := range entries {
		name := e.TeamName
		if name == "" {
			name = e.Name
		}
		if strings.TrimSpace(name) == "" {
			continue
		}
		id := e.ExternalID
		if id == "" {
			id = e.TeamID
		}
		rows = append(rows, models.RosterRow{
			TeamName:   name,
			Club:       e.Club,
			State:      e.State,
			ExternalID: id,
		})
	}
	return rows, nil
}

// parseRosterHTML extracts team rows from an HTML table, tolerating
// either a 2-column (name, club) or 3-column (name, club, state)
// layout and pulling an external id (the word characters after a
// "team-id"/"team_id"/"team/id" marker anywhere in the row) if
// present.
func parseRosterHTML(body []byte) ([]models.RosterRow, error) {
	html := string(body)
	matches := rosterRowPattern.FindAllStringSubmatch(html, -1)

	rows := make([]models.RosterRow, 0, len(matches))
	for _, rowHTML := range matches {
		cells := rosterCellPattern.FindAllStringSubmatch(rowHTML[1], -1)
		if len(cells) < 1 {
			continue
		}
		name := stripTags(cells[0][1])
		if name == "" || strings.EqualFold(name, "team") {
			continue
		}

		row := models.RosterRow{TeamName: name}
		if len(cells) > 1 {
			row.Club = stripTags(cells[1][1])
		}
		if len(cells) > 2 {
			row.State = stripTags(cells[2][1])
		}
		if m := externalIDPattern.FindStringSubmatch(rowHTML[1]); len(m) == 2 {
			row.ExternalID = m[1]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func stripTags(s string) string {
	return strings.TrimSpace(tagStripper.ReplaceAllString(s, ""))
}

// RunRosterStage scrapes rosters for every division in keys,
// bounding concurrency to maxWorkers via errgroup.SetLimit. Per-
// division failures are collected rather than aborting the whole
// stage, since one division's upstream outage should not block the
// others.
func RunRosterStage(ctx context.Context, client *httpapi.Client, divisions []models.Division, maxWorkers int, now time.Time) (map[string]RosterResult, map[string]error) {
	results := make(map[string]RosterResult, len(divisions))
	failures := make(map[string]error, len(divisions))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for _, d := range divisions {
		d := d
		g.Go(func() error {
			res, err := ScrapeRoster(gctx, client, d, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[d.Key] = err
				return nil // per-division errors do not cancel the group
			}
			results[d.Key] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, failures
}
