package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-favorites/internal/enrich"
	"github.com/kjstillabower/weather-favorites/internal/models"
)

// cli holds the app for the duration of one command so main can shut it down even
// when the command fails.
type cli struct {
	open       func(ctx context.Context) (*app, error)
	app        *app
	noBackfill bool
}

func (c *cli) shutdown() {
	if c.app != nil {
		c.app.shutdown()
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "favorites",
		Short:         "Favorite cities with current weather and forecasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.app = a
			if !c.noBackfill {
				a.backfillPending(cmd.Context())
			}
			return nil
		},
	}
	root.Version = version
	root.PersistentFlags().BoolVar(&c.noBackfill, "no-backfill", false, "Skip fetching weather for favorites stored without it")

	root.AddCommand(
		newSearchCmd(c),
		newListCmd(c),
		newToggleCmd(c),
		newRemoveCmd(c),
		newSelectCmd(c),
		newEnrichCmd(c),
		newWatchCmd(c),
	)
	return root
}

func cityArg(args []string) models.CityRecord {
	return models.CityRecord{Name: strings.TrimSpace(strings.Join(args, " "))}
}

func newSearchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search cities and show their current weather",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			if a.searcher == nil {
				return a.searchErr
			}
			results, err := a.searcher.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No cities found.")
				return nil
			}
			fmt.Fprintln(out, renderSearch(results, a.store.IsFavorite))
			return nil
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List favorite cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			favs := c.app.store.Snapshot()
			out := cmd.OutOrStdout()
			if len(favs) == 0 {
				fmt.Fprintln(out, "No favorites yet. Add one with 'favorites toggle <city>'.")
				return nil
			}
			fmt.Fprintln(out, renderFavorites(favs))
			if sel, ok := c.app.store.Selected(); ok {
				fmt.Fprintf(out, "Selected: %s (%d hourly, %d weekly points)\n",
					sel.Name, len(sel.HourlyForecast), len(sel.WeeklyForecast))
			}
			return nil
		},
	}
}

func newToggleCmd(c *cli) *cobra.Command {
	var flags struct {
		lat, lon float64
		country  string
	}
	cmd := &cobra.Command{
		Use:   "toggle <city>",
		Short: "Add a city to favorites, or remove it if already there",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city := cityArg(args)
			if city.Name == "" {
				return errors.New("city name is required")
			}
			f := cmd.Flags()
			if f.Changed("lat") != f.Changed("lon") {
				return errors.New("--lat and --lon must be given together")
			}
			if f.Changed("lat") {
				city.Coord = &models.Coordinates{Lat: flags.lat, Lon: flags.lon}
			}
			city.Country = flags.country

			added, err := c.app.store.Toggle(cmd.Context(), city)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if added {
				fmt.Fprintf(out, "Added %s to favorites\n", city.Name)
			} else {
				fmt.Fprintf(out, "Removed %s from favorites\n", city.Name)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64Var(&flags.lat, "lat", 0, "Latitude, enables the weekly forecast")
	f.Float64Var(&flags.lon, "lon", 0, "Longitude, enables the weekly forecast")
	f.StringVar(&flags.country, "country", "", "Country code shown next to the name")
	return cmd
}

func newRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <city>",
		Short: "Remove a city from favorites",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			city := cityArg(args)
			existed := c.app.store.IsFavorite(city)
			if err := c.app.store.Remove(cmd.Context(), city); err != nil {
				return err
			}
			if existed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from favorites\n", city.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not a favorite\n", city.Name)
			}
			return nil
		},
	}
}

func newSelectCmd(c *cli) *cobra.Command {
	var weekly bool
	cmd := &cobra.Command{
		Use:   "select <city>",
		Short: "Select a favorite and show its forecast",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			city := cityArg(args)
			if !a.store.IsFavorite(city) {
				return fmt.Errorf("%s is not a favorite", city.Name)
			}
			if err := a.store.Select(cmd.Context(), city); err != nil {
				return err
			}
			if weekly {
				fav, _ := a.store.Get(city.Name)
				a.enricher.TriggerWeekly(fav.CityRecord)
			}
			a.waitEnrichment()

			fav, _ := a.store.Get(city.Name)
			fmt.Fprintln(cmd.OutOrStdout(), renderForecast(fav))
			return nil
		},
	}
	cmd.Flags().BoolVar(&weekly, "weekly", false, "Also fetch the 7-day forecast (needs coordinates)")
	return cmd
}

func newEnrichCmd(c *cli) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "enrich <city>",
		Short: "Fetch weather data for a favorite now",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			fav, ok := a.store.Get(cityArg(args).Name)
			if !ok {
				return fmt.Errorf("%s is not a favorite", cityArg(args).Name)
			}
			fetches, err := fetchesFor(a.enricher, kind)
			if err != nil {
				return err
			}
			var errs []error
			for _, fetch := range fetches {
				if err := fetch(cmd.Context(), fav.CityRecord); err != nil {
					errs = append(errs, err)
				}
			}
			updated, _ := a.store.Get(fav.Name)
			fmt.Fprintln(cmd.OutOrStdout(), renderForecast(updated))
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "all", "What to fetch: weather, hourly, weekly or all")
	return cmd
}

type fetchFunc func(context.Context, models.CityRecord) error

func fetchesFor(e *enrich.Enricher, kind string) ([]fetchFunc, error) {
	switch enrich.Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case enrich.KindWeather:
		return []fetchFunc{e.FetchWeather}, nil
	case enrich.KindHourly:
		return []fetchFunc{e.FetchHourly}, nil
	case enrich.KindWeekly:
		return []fetchFunc{e.FetchWeekly}, nil
	case "all":
		return []fetchFunc{e.FetchWeather, e.FetchHourly, e.FetchWeekly}, nil
	}
	return nil, fmt.Errorf("unknown --kind %q (want weather, hourly, weekly or all)", kind)
}

func newWatchCmd(c *cli) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh current weather for all favorites until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := c.app
			if interval <= 0 {
				interval = a.cfg.RefreshInterval
			}
			out := cmd.OutOrStdout()
			var outMu sync.Mutex
			unsubscribe := a.store.Subscribe(func(favs []models.FavoriteCity) {
				outMu.Lock()
				defer outMu.Unlock()
				fmt.Fprintf(out, "%s updated %d favorites\n", time.Now().Format(time.TimeOnly), len(favs))
			})
			defer unsubscribe()

			a.logger.Info("watching favorites", zap.Duration("interval", interval))
			source := func() []models.CityRecord {
				favs := a.store.Snapshot()
				cities := make([]models.CityRecord, 0, len(favs))
				for _, f := range favs {
					cities = append(cities, f.CityRecord)
				}
				return cities
			}
			err := a.backfiller.RefreshPeriodic(cmd.Context(), source, interval)
			if cmd.Context().Err() != nil {
				outMu.Lock()
				defer outMu.Unlock()
				fmt.Fprintln(out, renderFavorites(a.store.Snapshot()))
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh interval (default from config watch.interval)")
	return cmd
}
