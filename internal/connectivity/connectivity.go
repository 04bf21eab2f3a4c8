// Package connectivity is the Connectivity Reporter (component H):
// it builds the undirected opponent graph of a division's roster and
// labels each team with its connected component and degree, so small
// isolated pockets of the division (scheduling islands) are visible
// downstream of the ranking CSV.
package connectivity

import (
	"sort"

	"github.com/greenbier/divrank/internal/models"
)

// smallComponentThreshold flags components below this size; not
// filtered out, just annotated via ComponentSize in the output row.
const smallComponentThreshold = 3

// Report builds one ConnectivityRow per roster team from the match
// set. matches should be the same gold rows fed to the ranking
// engine; edges are deduplicated regardless of direction or repeat
// meetings.
func Report(roster []models.Team, matches []models.Match) []models.ConnectivityRow {
	adjacency := make(map[string]map[string]struct{}, len(roster))
	for _, t := range roster {
		adjacency[t.TeamKey] = make(map[string]struct{})
	}

	for _, m := range matches {
		if _, ok := adjacency[m.TeamAKey]; !ok {
			continue
		}
		if _, ok := adjacency[m.TeamBKey]; !ok {
			continue
		}
		adjacency[m.TeamAKey][m.TeamBKey] = struct{}{}
		adjacency[m.TeamBKey][m.TeamAKey] = struct{}{}
	}

	componentOf := make(map[string]int)
	componentSize := make(map[int]int)
	nextComponent := 0

	keys := make([]string, 0, len(adjacency))
	for k := range adjacency {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, start := range keys {
		if _, visited := componentOf[start]; visited {
			continue
		}
		id := nextComponent
		nextComponent++
		size := floodFill(start, adjacency, componentOf, id)
		componentSize[id] = size
	}

	rows := make([]models.ConnectivityRow, 0, len(roster))
	for _, k := range keys {
		rows = append(rows, models.ConnectivityRow{
			TeamKey:       k,
			ComponentID:   componentOf[k],
			ComponentSize: componentSize[componentOf[k]],
			Degree:        len(adjacency[k]),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TeamKey < rows[j].TeamKey })
	return rows
}

// floodFill walks the component containing start using BFS over a
// plain queue, marking every visited node with componentID, and
// returns the component's size.
func floodFill(start string, adjacency map[string]map[string]struct{}, componentOf map[string]int, componentID int) int {
	queue := []string{start}
	componentOf[start] = componentID
	size := 0

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		size++

		neighbors := make([]string, 0, len(adjacency[node]))
		for n := range adjacency[node] {
			neighbors = append(neighbors, n)
		}
		sort.Strings(neighbors)

		for _, n := range neighbors {
			if _, visited := componentOf[n]; visited {
				continue
			}
			componentOf[n] = componentID
			queue = append(queue, n)
		}
	}
	return size
}

// IsSmall reports whether a component is below the flagging
// threshold used in summaries.
func IsSmall(size int) bool {
	return size < smallComponentThreshold
}
