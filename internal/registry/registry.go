// Package registry is the Division Registry (component A): the
// single source of truth mapping a division key to its upstream
// roster URL, canonical display name, and derived file paths.
// Divisions are loaded once at process start and never mutated.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/greenbier/divrank/internal/errs"
	"github.com/greenbier/divrank/internal/models"
)

// Registry is an immutable, loaded-once table of divisions.
type Registry struct {
	divisions map[string]models.Division
}

// Load builds the registry from a built-in seed table, optionally
// merging in additional divisions from a JSON file at path (the
// extension point described in SPEC_FULL.md §4.3). An empty path
// skips the file entirely.
func Load(path string) (*Registry, error) {
	r := &Registry{divisions: seedDivisions()}

	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("registry: reading %s: %w", path, err)
	}

	var extra []models.Division
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("registry: parsing %s: %w", path, err)
	}
	for _, d := range extra {
		r.divisions[d.Key] = d
	}
	return r, nil
}

// Get returns the division registered under key, or ErrUnknownDivision.
func (r *Registry) Get(key string) (models.Division, error) {
	d, ok := r.divisions[key]
	if !ok {
		return models.Division{}, fmt.Errorf("registry: division %q: %w", key, errs.ErrUnknownDivision)
	}
	return d, nil
}

// Keys returns all registered division keys, sorted for deterministic
// iteration.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.divisions))
	for k := range r.divisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BronzeRosterPath returns the bronze roster CSV path for a division
// (spec.md §6), rooted under bronzeDir.
func BronzeRosterPath(bronzeDir, divisionKey string) string {
	return fmt.Sprintf("%s/%s_teams.csv", bronzeDir, divisionKey)
}

// GoldMatchesPath returns the gold match CSV path for a division.
func GoldMatchesPath(goldDir, divisionKey string) string {
	return fmt.Sprintf("%s/matches_%s.csv", goldDir, divisionKey)
}

// ProfileCachePath returns the profile cache JSON path for a division.
func ProfileCachePath(cacheDir, divisionKey string) string {
	return fmt.Sprintf("%s/profiles_%s.json", cacheDir, divisionKey)
}

// ErrorLogPath returns the scrape error log path for a division.
func ErrorLogPath(logsDir, divisionKey string) string {
	return fmt.Sprintf("%s/scrape_errors_%s.log", logsDir, divisionKey)
}

// RankingsPath returns the rankings CSV output path for a division.
func RankingsPath(outputsDir, divisionKey string) string {
	return fmt.Sprintf("%s/rankings_%s.csv", outputsDir, divisionKey)
}

// ConnectivityPath returns the connectivity CSV output path for a
// division.
func ConnectivityPath(outputsDir, divisionKey string) string {
	return fmt.Sprintf("%s/connectivity_%s.csv", outputsDir, divisionKey)
}

// seedDivisions is the built-in division table. Real deployments are
// expected to extend this via Config.RegistryPath rather than edit it
// in place; it exists so the registry is usable out of the box.
func seedDivisions() map[string]models.Division {
	seed := []models.Division{
		{
			Key: "az_boys_u11", Age: 11, Gender: "m", State: "AZ",
			RosterURL: "https://rankings.example-tourney.com/az/boys/u11",
			Active:    true, RosterFormat: "auto",
			AdjacentOlder: "az_boys_u12", DisplayName: "AZ Boys U11",
		},
		{
			Key: "az_boys_u12", Age: 12, Gender: "m", State: "AZ",
			RosterURL: "https://rankings.example-tourney.com/az/boys/u12",
			Active:    true, RosterFormat: "auto",
			AdjacentOlder: "az_boys_u13", AdjacentYounger: "az_boys_u11",
			DisplayName: "AZ Boys U12",
		},
		{
			Key: "az_boys_u13", Age: 13, Gender: "m", State: "AZ",
			RosterURL: "https://rankings.example-tourney.com/az/boys/u13",
			Active:    true, RosterFormat: "auto",
			AdjacentYounger: "az_boys_u12", DisplayName: "AZ Boys U13",
		},
		{
			Key: "az_girls_u11", Age: 11, Gender: "f", State: "AZ",
			RosterURL: "https://rankings.example-tourney.com/az/girls/u11",
			Active:    true, RosterFormat: "auto",
			AdjacentOlder: "az_girls_u12", DisplayName: "AZ Girls U11",
		},
		{
			Key: "az_girls_u12", Age: 12, Gender: "f", State: "AZ",
			RosterURL: "https://rankings.example-tourney.com/az/girls/u12",
			Active:    true, RosterFormat: "auto",
			AdjacentYounger: "az_girls_u11", DisplayName: "AZ Girls U12",
		},
	}

	m := make(map[string]models.Division, len(seed))
	for _, d := range seed {
		m[d.Key] = d
	}
	return m
}
