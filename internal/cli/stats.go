package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/stats"
)

var (
	statsDeck string
	statsUser string
	statsYear int
	statsDays int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		now := time.Now()
		f := statsFilter(a.engine.DayBoundary().Location, now)
		sum, err := a.engine.Stats().Summary(context.Background(), f, now)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "reviews:      %d over %d active days\n", sum.TotalReviews, sum.ActiveDays)
		fmt.Fprintf(out, "per day:      %.1f ± %.1f\n", sum.AveragePerDay, sum.StdDevPerDay)
		if sum.Retention >= 0 {
			fmt.Fprintf(out, "retention:    %.1f%%\n", sum.Retention*100)
		}
		fmt.Fprintf(out, "new cards:    %d\n", sum.NewCardsSeen)
		fmt.Fprintf(out, "time spent:   %s\n", sum.TimeSpent.Round(time.Second))
		fmt.Fprintf(out, "streak:       %d days (longest %d)\n", sum.Streak.Current, sum.Streak.Longest)
		for _, r := range fsrs.Ratings {
			fmt.Fprintf(out, "  %-6s %d\n", r, sum.Ratings[r])
		}
		return nil
	},
}

var statsDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show reviews per study day",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		now := time.Now()
		days, err := a.engine.Stats().ReviewsPerDay(context.Background(), statsFilter(a.engine.DayBoundary().Location, now))
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tREVIEWS\tNEW\tAGAIN\tRETENTION")
		for _, d := range days {
			ret := "-"
			if r := d.Retention(); r >= 0 {
				ret = fmt.Sprintf("%.0f%%", r*100)
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", d.Date, d.Reviews, d.New, d.Again, ret)
		}
		return tw.Flush()
	},
}

func statsFilter(loc *time.Location, now time.Time) stats.Filter {
	var f stats.Filter
	switch {
	case statsYear > 0:
		f = stats.Year(statsYear, loc)
	case statsDays > 0:
		f.From = now.AddDate(0, 0, -statsDays)
	}
	f.DeckID = statsDeck
	f.UserID = statsUser
	return f
}

func init() {
	for _, c := range []*cobra.Command{statsCmd, statsDailyCmd} {
		c.Flags().StringVar(&statsDeck, "deck", "", "only this deck")
		c.Flags().StringVar(&statsUser, "user", "", "only this user")
		c.Flags().IntVar(&statsYear, "year", 0, "calendar year")
		c.Flags().IntVar(&statsDays, "days", 0, "last N days")
	}
	statsCmd.AddCommand(statsDailyCmd)
}
