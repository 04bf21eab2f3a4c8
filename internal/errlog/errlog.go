// Package errlog writes the append-only, one-JSON-object-per-line
// scrape error log described in spec.md §6. Each entry is tagged with
// a run id (a github.com/google/uuid v4) so log lines from one
// scrape invocation can be correlated across a division's rotated
// log history without threading a request id through every call.
package errlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenbier/divrank/internal/fsio"
	"github.com/greenbier/divrank/internal/metrics"
)

// Entry is one line of the scrape error log.
type Entry struct {
	Timestamp  time.Time `json:"ts"`
	RunID      string    `json:"run_id"`
	Division   string    `json:"division"`
	TeamKey    string    `json:"team_key,omitempty"`
	Attempt    int       `json:"attempt,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Reason     string    `json:"reason"`
}

// Logger appends entries to one division's error log for a single
// run.
type Logger struct {
	path     string
	runID    string
	division string
}

// New creates a Logger for one scrape run against one division,
// minting a fresh run id.
func New(path, division string) *Logger {
	return &Logger{path: path, runID: uuid.NewString(), division: division}
}

// Record appends one error entry, silently dropping the entry on a
// write failure (the error log is best-effort diagnostics, not a
// source of truth, so the scrape should not abort for this alone).
func (l *Logger) Record(teamKey string, attempt, statusCode int, reason string) {
	metrics.RecordError("scrape", l.division)
	entry := Entry{
		Timestamp:  time.Now().UTC(),
		RunID:      l.runID,
		Division:   l.division,
		TeamKey:    teamKey,
		Attempt:    attempt,
		StatusCode: statusCode,
		Reason:     reason,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_ = fsio.AppendLine(l.path, line)
}

// RunID returns the correlation id for this logger's run, useful for
// the CLI summary line.
func (l *Logger) RunID() string {
	return l.runID
}

func (l *Logger) String() string {
	return fmt.Sprintf("errlog(division=%s run=%s)", l.division, l.runID)
}
