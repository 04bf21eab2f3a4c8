package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbier/divrank/internal/httpapi"
	"github.com/greenbier/divrank/internal/models"
)

func newRosterServer(body string, contentType string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
}

func testClient() *httpapi.Client {
	return httpapi.New("divrank-test/1.0", 5*time.Second, 4, time.Millisecond, time.Millisecond, 1, time.Millisecond)
}

func TestScrapeRoster_JSON(t *testing.T) {
	srv := newRosterServer(`[{"team_name":"Phoenix United 2015 Premier","club":"Phoenix United","state":"AZ","id":"123"}]`, "application/json")
	defer srv.Close()

	div := models.Division{Key: "az-b-u11", RosterURL: srv.URL, RosterFormat: "auto"}
	result, err := ScrapeRoster(context.Background(), testClient(), div, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Phoenix United 2015 Premier", result.Rows[0].TeamName)
	assert.NotEmpty(t, result.Rows[0].TeamKey)
	assert.Len(t, result.Teams, 1)
}

func TestScrapeRoster_HTML(t *testing.T) {
	html := `<table>
		<tr><td>Team</td><td>Club</td><td>State</td></tr>
		<tr><td><a href="/team-id=55">Desert United SC</a></td><td>Desert United</td><td>AZ</td></tr>
	</table>`
	srv := newRosterServer(html, "text/html")
	defer srv.Close()

	div := models.Division{Key: "az-g-u12", RosterURL: srv.URL, RosterFormat: "auto"}
	result, err := ScrapeRoster(context.Background(), testClient(), div, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Desert United SC", result.Rows[0].TeamName)
	assert.Equal(t, "55", result.Rows[0].ExternalID)
}

func TestScrapeRoster_EmptyUpstream(t *testing.T) {
	srv := newRosterServer("", "application/json")
	defer srv.Close()

	div := models.Division{Key: "az-b-u13", RosterURL: srv.URL, RosterFormat: "auto"}
	_, err := ScrapeRoster(context.Background(), testClient(), div, time.Now())
	assert.Error(t, err)
}

func TestRunRosterStage_CollectsPerDivisionFailures(t *testing.T) {
	good := newRosterServer(`[{"team_name":"Team A","id":"1"}]`, "application/json")
	defer good.Close()
	bad := newRosterServer("", "application/json")
	defer bad.Close()

	divisions := []models.Division{
		{Key: "good", RosterURL: good.URL, RosterFormat: "auto"},
		{Key: "bad", RosterURL: bad.URL, RosterFormat: "auto"},
	}

	results, failures := RunRosterStage(context.Background(), testClient(), divisions, 2, time.Now())
	assert.Len(t, results, 1)
	assert.Len(t, failures, 1)
	assert.Contains(t, failures, "bad")
	assert.Contains(t, results, "good")
}
