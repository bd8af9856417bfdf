// Command lunchctl runs one lunch search from the terminal.
//
// Usage:
//
//	go run ./cmd/lunchctl -query "ramen"
//	LOCATION_MODE=fixed LOCATION_LAT=30.2672 LOCATION_LON=-97.7431 \
//	  go run ./cmd/lunchctl -query tacos -json
//
// Collaborators are configured from the same environment as lunchd.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/adapter/location"
	"github.com/couchcryptid/lunch-locator-service/internal/adapter/mapbox"
	"github.com/couchcryptid/lunch-locator-service/internal/config"
	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	"github.com/couchcryptid/lunch-locator-service/internal/geo"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "lunchctl:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("lunchctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	query := fs.String("query", "lunch", "what to search for")
	timeout := fs.Duration("timeout", 15*time.Second, "give up after this long")
	asJSON := fs.Bool("json", false, "print the final state as JSON")
	verbose := fs.Bool("v", false, "log collaborator activity to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := domain.NormalizeQuery(*query)
	if q == "" || len(q) > domain.MaxQueryLength {
		return fmt.Errorf("query must be 1-%d characters", domain.MaxQueryLength)
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rankBy, err := domain.ParseRankBy(cfg.RankBy)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	searcher, geocoder := mapbox.FromConfig(cfg, logger, nil)
	locator := location.FromConfig(cfg, geocoder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	o := geo.New(ctx, locator, searcher, geo.WithLogger(logger), geo.WithRankBy(rankBy))
	defer func() {
		cancel()
		_ = o.Wait(context.Background())
	}()

	final, err := search(ctx, o, q, progressPrinter(stderr, *asJSON))
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(final); err != nil {
			return err
		}
	} else {
		printPlaces(stdout, final)
	}

	if final.LunchPlaces.Phase == domain.PhaseFailure {
		return fmt.Errorf("search failed: %s", final.LunchPlaces.Kind)
	}
	return nil
}

// search issues the query and blocks until its status is terminal.
func search(ctx context.Context, o *geo.Orchestrator, q domain.SearchQuery, onChange func(domain.GeoState)) (domain.GeoState, error) {
	updates := make(chan domain.GeoState, 1)
	unsubscribe := o.Subscribe(func(s domain.GeoState) {
		onChange(s)
		select {
		case <-updates:
		default:
		}
		updates <- s
	})
	defer unsubscribe()

	o.SearchLunchPlaces(q)

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.GeoState{}, errors.New("timed out waiting for results")
			}
			return domain.GeoState{}, ctx.Err()
		case s := <-updates:
			if p := s.LunchPlaces; p != nil && p.Arg == q && p.IsTerminal() {
				return s, nil
			}
		}
	}
}

// progressPrinter reports phase changes of both statuses, once each.
func progressPrinter(w io.Writer, quiet bool) func(domain.GeoState) {
	var lastLocation, lastPlaces string
	return func(s domain.GeoState) {
		if quiet {
			return
		}
		if loc := describe(s.CurrentLocation); loc != lastLocation {
			lastLocation = loc
			if loc != "" {
				fmt.Fprintf(w, "location: %s\n", loc)
			}
		}
		if places := describe(s.LunchPlaces); places != lastPlaces {
			lastPlaces = places
			if places != "" {
				fmt.Fprintf(w, "places:   %s\n", places)
			}
		}
	}
}

func describe[In, Out any](s *domain.Status[In, Out]) string {
	switch {
	case s == nil:
		return ""
	case s.Phase == domain.PhaseFailure:
		return fmt.Sprintf("%s (%s)", s.Phase, s.Kind)
	default:
		return string(s.Phase)
	}
}

func printPlaces(w io.Writer, s domain.GeoState) {
	if loc := s.CurrentLocation; loc != nil && loc.Phase == domain.PhaseSuccess {
		where := loc.Result.Label
		if where == "" {
			where = fmt.Sprintf("%.4f, %.4f", loc.Result.Point.Lat, loc.Result.Point.Lon)
		}
		fmt.Fprintf(w, "near %s (±%.0fm)\n\n", where, loc.Result.AccuracyMeters)
	}

	places := s.LunchPlaces
	if places == nil || places.Phase != domain.PhaseSuccess {
		return
	}
	if len(places.Result) == 0 {
		fmt.Fprintf(w, "no places found for %q\n", places.Arg)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tDISTANCE\tADDRESS")
	for i, p := range places.Result {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, p.Name, formatDistance(p.DistanceMeters), p.Address)
	}
	_ = tw.Flush()
}

func formatDistance(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("%.0f m", m)
	}
	return fmt.Sprintf("%.1f km", m/1000)
}
