// Command divrank is the CLI entry point for the scraping pipeline
// and ranking engine: scrape-teams, scrape-matches, rank, or all,
// against one division at a time, plus a long-running serve command
// for unattended nightly refresh and metrics export.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/greenbier/divrank/internal/config"
	"github.com/greenbier/divrank/internal/connectivity"
	"github.com/greenbier/divrank/internal/errlog"
	"github.com/greenbier/divrank/internal/errs"
	"github.com/greenbier/divrank/internal/fsio"
	"github.com/greenbier/divrank/internal/httpapi"
	"github.com/greenbier/divrank/internal/matcher"
	"github.com/greenbier/divrank/internal/metrics"
	"github.com/greenbier/divrank/internal/models"
	"github.com/greenbier/divrank/internal/profilecache"
	"github.com/greenbier/divrank/internal/ranking"
	"github.com/greenbier/divrank/internal/registry"
	"github.com/greenbier/divrank/internal/schedule"
	"github.com/greenbier/divrank/internal/scrape"
)

const (
	exitOK               = 0
	exitInvalidArgs      = 2
	exitUnknownDivision  = 3
	exitThresholdExceeded = 4
	exitMalformedInput   = 5
	exitOther            = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	command := flag.String("command", "", "one of: scrape-teams, scrape-matches, rank, all, serve")
	division := flag.String("division", "", "division key, required for scrape-teams/scrape-matches/rank/all")
	workers := flag.Int("workers", 0, "override MAX_WORKERS")
	timeoutSeconds := flag.Int("timeout-seconds", 0, "override HTTP_TIMEOUT in seconds")
	windowDays := flag.Int("window-days", 0, "override WINDOW_DAYS")
	flag.Parse()

	if flag.NArg() > 0 && *command == "" {
		*command = flag.Arg(0)
	}
	if *command == "" || (*division == "" && *command != "serve") {
		fmt.Fprintln(os.Stderr, "usage: divrank --command={scrape-teams,scrape-matches,rank,all,serve} --division=<key> [--workers=N] [--timeout-seconds=N] [--window-days=N]")
		return exitInvalidArgs
	}

	cfg := config.MustLoad()
	setupLogging(cfg)

	if *workers > 0 {
		cfg.MaxWorkers = *workers
	}
	if *timeoutSeconds > 0 {
		cfg.HTTPTimeout = time.Duration(*timeoutSeconds) * time.Second
	}
	if *windowDays > 0 {
		cfg.WindowDays = *windowDays
	}

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		log.Error().Err(err).Msg("loading division registry")
		return exitOther
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	client := httpapi.New(cfg.HTTPUserAgent, cfg.HTTPTimeout, cfg.MaxWorkers, cfg.JitterMinDelay, cfg.JitterMaxDelay, cfg.MaxRetries, cfg.RetryBaseDelay)

	if *command == "serve" {
		return runServe(ctx, client, reg, cfg)
	}

	div, err := reg.Get(*division)
	if err != nil {
		log.Error().Err(err).Str("division", *division).Msg("unknown division")
		return exitUnknownDivision
	}

	switch *command {
	case "scrape-teams":
		return runScrapeTeams(ctx, client, div, cfg)
	case "scrape-matches":
		return runScrapeMatches(ctx, client, div, cfg)
	case "rank":
		return runRank(div, cfg)
	case "all":
		if code := runScrapeTeams(ctx, client, div, cfg); code != exitOK {
			return code
		}
		if code := runScrapeMatches(ctx, client, div, cfg); code != exitOK {
			return code
		}
		return runRank(div, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", *command)
		return exitInvalidArgs
	}
}

// runServe starts the metrics HTTP endpoint (if enabled) and the
// nightly batch scheduler, blocking until the process is interrupted.
// With the scheduler disabled it returns at once, metrics or not.
// This is the long-running counterpart to the one-shot commands
// above, the entrypoint an operator deploys for unattended nightly
// refresh of every registered division.
func runServe(ctx context.Context, client *httpapi.Client, reg *registry.Registry, cfg *config.Config) int {
	if cfg.EnableMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		go func() {
			log.Info().Str("addr", addr).Msg("metrics endpoint listening")
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error().Err(err).Msg("metrics endpoint stopped")
			}
		}()
	}

	if !cfg.EnableScheduler {
		log.Info().Msg("scheduler disabled, serve has nothing to do; exiting")
		return exitOK
	}

	refresh := func(refreshCtx context.Context, divisionKey string) error {
		div, err := reg.Get(divisionKey)
		if err != nil {
			return err
		}
		if !div.Active {
			return nil
		}
		if code := runScrapeTeams(refreshCtx, client, div, cfg); code != exitOK {
			return fmt.Errorf("scrape-teams exited with code %d", code)
		}
		if code := runScrapeMatches(refreshCtx, client, div, cfg); code != exitOK {
			return fmt.Errorf("scrape-matches exited with code %d", code)
		}
		if code := runRank(div, cfg); code != exitOK {
			return fmt.Errorf("rank exited with code %d", code)
		}
		return nil
	}

	sched := schedule.New(cfg.NightlyRefreshCron, reg.Keys(), refresh)
	if err := sched.Start(ctx); err != nil {
		log.Error().Err(err).Msg("starting scheduler")
		return exitOther
	}
	defer sched.Stop()

	<-ctx.Done()
	return exitOK
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func runScrapeTeams(ctx context.Context, client *httpapi.Client, div models.Division, cfg *config.Config) int {
	now := time.Now()
	result, err := scrape.ScrapeRoster(ctx, client, div, now)
	if err != nil {
		log.Error().Err(err).Str("division", div.Key).Msg("roster scrape failed")
		if errors.Is(err, errs.ErrEmptyUpstream) {
			return exitMalformedInput
		}
		return exitOther
	}

	path := registry.BronzeRosterPath(cfg.BronzeDir, div.Key)
	if err := fsio.WriteCSVAtomic(path, result.Rows); err != nil {
		log.Error().Err(err).Msg("writing bronze roster")
		return exitOther
	}

	log.Info().Str("division", div.Key).Int("teams", len(result.Rows)).Str("path", path).Msg("roster scrape complete")
	return exitOK
}

func runScrapeMatches(ctx context.Context, client *httpapi.Client, div models.Division, cfg *config.Config) int {
	roster, err := loadRosterTeams(registry.BronzeRosterPath(cfg.BronzeDir, div.Key), div.Key)
	if err != nil {
		log.Error().Err(err).Str("division", div.Key).Msg("reading bronze roster")
		return exitMalformedInput
	}

	// The matcher resolves opponent names against this division's own
	// roster plus its one-age-up and one-age-down rosters, so a game
	// against an adjacent-age team lands on that team's real key
	// instead of being synthesized as external (§4.1.3 step 2,
	// §4.2.6). ageOf reports which side of the age boundary a resolved
	// opponent came from; an opponent resolved against neither
	// adjacent roster is treated as own-age (including synthesized
	// external teams, which carry no age information at all).
	matchRoster := append([]models.Team(nil), roster...)
	olderKeys, youngerKeys := make(map[string]bool), make(map[string]bool)
	if adj := div.AdjacentOlder; adj != "" {
		matchRoster = appendAdjacentRoster(matchRoster, olderKeys, cfg, adj)
	}
	if adj := div.AdjacentYounger; adj != "" {
		matchRoster = appendAdjacentRoster(matchRoster, youngerKeys, cfg, adj)
	}

	cachePath := registry.ProfileCachePath(cfg.CacheDir, div.Key)
	cache, err := profilecache.Load(cachePath)
	if err != nil {
		log.Error().Err(err).Msg("loading profile cache")
		return exitOther
	}

	m := matcher.New(matchRoster, cfg.FuzzyRosterThreshold, cfg.FuzzySearchThreshold)
	ageOf := func(opponentKey string) models.AgeContext {
		switch {
		case olderKeys[opponentKey]:
			return models.AgeContextOlder
		case youngerKeys[opponentKey]:
			return models.AgeContextYounger
		default:
			return models.AgeContextOwn
		}
	}

	logger := errlog.New(registry.ErrorLogPath(cfg.LogsDir, div.Key), div.Key)
	searchURLTemplate := div.RosterURL + "?search=%s"
	matches, failedCount := scrape.RunMatchStage(ctx, client, cache, m, roster, "%s", searchURLTemplate, div, ageOf, cfg.MaxWorkers, logger)

	if err := cache.Flush(); err != nil {
		log.Error().Err(err).Msg("flushing profile cache")
	}
	metrics.ScrapeTeamsFailedTotal.WithLabelValues(div.Key).Add(float64(failedCount))

	// Gold output is written before the threshold check so a fatal
	// ThresholdExceeded still leaves partial results on disk for
	// inspection (§4.1.3, §7).
	goldPath := registry.GoldMatchesPath(cfg.GoldDir, div.Key)
	if err := fsio.WriteCSVAtomic(goldPath, sortMatches(matches)); err != nil {
		log.Error().Err(err).Msg("writing gold matches")
		return exitOther
	}

	eligible := countRankEligible(roster)
	if eligible > 0 && float64(failedCount)/float64(eligible) > cfg.FailureThreshold {
		log.Error().Int("failed", failedCount).Int("total", eligible).Msg("failure threshold exceeded")
		return exitThresholdExceeded
	}

	log.Info().Str("division", div.Key).Int("matches", len(matches)).Int("failed_teams", failedCount).Msg("match scrape complete")
	return exitOK
}

// appendAdjacentRoster loads the bronze roster for an adjacent-age
// division (if it has been scraped yet) and appends it to dst as
// non-rank-eligible teams, recording each key in ageKeys so ageOf can
// tag games against it. A roster that has not been scraped yet is
// skipped rather than treated as fatal: the division it belongs to
// may simply not have run yet.
func appendAdjacentRoster(dst []models.Team, ageKeys map[string]bool, cfg *config.Config, divisionKey string) []models.Team {
	adjRoster, err := loadRosterTeams(registry.BronzeRosterPath(cfg.BronzeDir, divisionKey), divisionKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("division", divisionKey).Msg("adjacent roster not scraped yet, skipping cross-age resolution")
		} else {
			log.Warn().Err(err).Str("division", divisionKey).Msg("reading adjacent roster")
		}
		return dst
	}
	for _, t := range adjRoster {
		t.RankEligible = false
		dst = append(dst, t)
		ageKeys[t.TeamKey] = true
	}
	return dst
}

// loadRosterTeams reads a bronze roster CSV and converts it to the
// in-memory Team records the matcher and ranking engine operate on.
func loadRosterTeams(path, divisionKey string) ([]models.Team, error) {
	var rows []models.RosterRow
	if err := fsio.ReadCSV(path, &rows); err != nil {
		return nil, err
	}
	teams := make([]models.Team, 0, len(rows))
	for i, r := range rows {
		teams = append(teams, models.Team{
			ID: i + 1, TeamKey: r.TeamKey, DisplayName: r.TeamName,
			Club: r.Club, State: r.State, ExternalID: r.ExternalID,
			Division: divisionKey, RankEligible: true,
		})
	}
	return teams, nil
}

func runRank(div models.Division, cfg *config.Config) int {
	goldPath := registry.GoldMatchesPath(cfg.GoldDir, div.Key)
	var matches []models.Match
	if err := fsio.ReadCSV(goldPath, &matches); err != nil {
		log.Error().Err(err).Str("path", goldPath).Msg("reading gold matches")
		return exitMalformedInput
	}
	// Date is not a CSV column; restore it from the date column.
	for i := range matches {
		d, err := time.Parse("2006-01-02", matches[i].DateStr)
		if err != nil {
			log.Error().Err(err).Str("path", goldPath).Msg("parsing gold match date")
			return exitMalformedInput
		}
		matches[i].Date = d
	}

	roster, err := loadRosterTeams(registry.BronzeRosterPath(cfg.BronzeDir, div.Key), div.Key)
	if err != nil {
		log.Error().Err(err).Str("division", div.Key).Msg("reading bronze roster")
		return exitMalformedInput
	}

	rankCfg := ranking.Config{
		WindowDays:              cfg.WindowDays,
		ActiveMinGames:          cfg.ActiveMinGames,
		ActiveMaxDaysSinceGame:  cfg.ActiveMaxDaysSinceGame,
		DefaultOpponentStrength: cfg.DefaultOpponentStrength,
		SOSIterationCap:         cfg.SOSIterationCap,
		SOSConvergenceDelta:     cfg.SOSConvergenceDelta,
		EloK:                    cfg.EloK,
		LearningRateBase:        cfg.LearningRateBase,
		LearningRateAlpha:       cfg.LearningRateAlpha,
		LearningRateBeta:        cfg.LearningRateBeta,
		CrossAgeMultiplier:      cfg.CrossAgeMultiplier,
	}

	runStart := time.Now()
	result, err := ranking.Run(matches, roster, rankCfg, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("ranking run failed")
		return exitOther
	}
	if !result.Converged {
		log.Warn().Int("iterations", result.Iterations).Msg("SOS solver hit iteration cap without converging")
	}
	metrics.RecordRankingRun(div.Key, time.Since(runStart).Seconds(), result.Iterations, result.Converged, len(result.Rows))

	rankPath := registry.RankingsPath(cfg.OutputsDir, div.Key)
	if err := fsio.WriteCSVAtomic(rankPath, result.Rows); err != nil {
		log.Error().Err(err).Msg("writing rankings")
		return exitOther
	}

	connRows := connectivity.Report(roster, matches)
	connPath := registry.ConnectivityPath(cfg.OutputsDir, div.Key)
	if err := fsio.WriteCSVAtomic(connPath, connRows); err != nil {
		log.Error().Err(err).Msg("writing connectivity report")
		return exitOther
	}

	log.Info().Str("division", div.Key).Int("teams_ranked", len(result.Rows)).Int("sos_iterations", result.Iterations).Msg("ranking complete")
	return exitOK
}

func countRankEligible(roster []models.Team) int {
	n := 0
	for _, t := range roster {
		if t.RankEligible {
			n++
		}
	}
	return n
}

// sortMatches orders gold rows by (team_a_key, team_b_key, date) so
// two runs over an unchanged upstream produce byte-identical output
// (I5).
func sortMatches(matches []models.Match) []models.Match {
	sorted := make([]models.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TeamAKey != b.TeamAKey {
			return a.TeamAKey < b.TeamAKey
		}
		if a.TeamBKey != b.TeamBKey {
			return a.TeamBKey < b.TeamBKey
		}
		return a.Date.Before(b.Date)
	})
	return sorted
}
