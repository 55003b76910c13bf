package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var dueUser string

var dueCmd = &cobra.Command{
	Use:   "due [deck-id]",
	Short: "Show what a deck has due today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.engine.DeckCounts(context.Background(), args[0], dueUser)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "new:      %d available (%d/%d studied today, %d unseen)\n",
			c.AvailableNew, c.NewStudiedToday, c.DailyNewCardsLimit, c.New)
		fmt.Fprintf(out, "learning: %d due\n", c.DueLearning)
		fmt.Fprintf(out, "review:   %d available (%d/%d done today, %d due)\n",
			c.AvailableReview, c.ReviewsDoneToday, c.DailyReviewLimit, c.DueReview)
		return nil
	},
}

func init() {
	dueCmd.Flags().StringVar(&dueUser, "user", "", "count today's activity for this user only")
}
