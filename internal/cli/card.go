package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/fsrs"
	"github.com/lazypower/cadence/internal/store"
)

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Manage cards",
}

var cardAddCmd = &cobra.Command{
	Use:   "add [deck-id] [front] [back]",
	Short: "Add a card",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		c, err := addCard(context.Background(), a.db, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), c.ID)
		return nil
	},
}

var cardImportCmd = &cobra.Command{
	Use:   "import [deck-id] [file]",
	Short: "Add cards from a tab-separated file, one front<TAB>back per line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		ctx := context.Background()
		n := 0
		sc := bufio.NewScanner(f)
		for line := 1; sc.Scan(); line++ {
			text := strings.TrimSpace(sc.Text())
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			front, back, ok := strings.Cut(text, "\t")
			if !ok {
				return fmt.Errorf("%s:%d: expected front<TAB>back", args[1], line)
			}
			if _, err := addCard(ctx, a.db, args[0], front, back); err != nil {
				return fmt.Errorf("%s:%d: %w", args[1], line, err)
			}
			n++
		}
		if err := sc.Err(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d cards\n", n)
		return nil
	},
}

func addCard(ctx context.Context, db *store.DB, deckID, front, back string) (*store.CardRecord, error) {
	deck, err := db.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck == nil {
		return nil, fmt.Errorf("deck %s: %w", deckID, store.ErrNotFound)
	}
	return db.CreateCard(ctx, deckID, front, back, time.Now())
}

var cardListDue bool

var cardListCmd = &cobra.Command{
	Use:   "list [deck-id]",
	Short: "List a deck's cards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		var f store.CardFilter
		if cardListDue {
			f.DueBefore = time.Now()
		}
		cards, err := a.db.ListCards(context.Background(), args[0], f)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATE\tDUE\tSTABILITY\tFRONT")
		for _, c := range cards {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", c.ID, c.State, c.Due.Local().Format(time.DateTime), c.Stability, truncate(c.Front, 40))
		}
		return tw.Flush()
	},
}

var cardPreviewCmd = &cobra.Command{
	Use:   "preview [card-id]",
	Short: "Show when each rating would schedule a card next",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		preview, err := a.engine.Preview(ctx, args[0])
		if err != nil {
			return err
		}
		r, err := a.engine.Retrievability(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "retrievability: %.1f%%\n", r*100)
		for _, rating := range fsrs.Ratings {
			res := preview[rating]
			fmt.Fprintf(out, "%-6s %-10s in %s\n", rating, res.Card.State, humanInterval(res.Card.ScheduledDays))
		}
		return nil
	},
}

var cardForgetReset bool

var cardForgetCmd = &cobra.Command{
	Use:   "forget [card-id]",
	Short: "Send a card back to new",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		_, err = a.engine.Forget(context.Background(), args[0], cardForgetReset)
		return err
	},
}

var cardRescheduleCmd = &cobra.Command{
	Use:   "reschedule [card-id]",
	Short: "Rebuild a card's schedule from its review history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.engine.Reschedule(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s due %s\n", c.State, c.Due.Local().Format(time.DateTime))
		return nil
	},
}

func init() {
	cardListCmd.Flags().BoolVar(&cardListDue, "due", false, "only cards due now")
	cardForgetCmd.Flags().BoolVar(&cardForgetReset, "reset", false, "also clear reps and lapses")

	cardCmd.AddCommand(cardAddCmd)
	cardCmd.AddCommand(cardImportCmd)
	cardCmd.AddCommand(cardListCmd)
	cardCmd.AddCommand(cardPreviewCmd)
	cardCmd.AddCommand(cardForgetCmd)
	cardCmd.AddCommand(cardRescheduleCmd)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

// humanInterval formats fractional days the way a reviewer thinks of them.
func humanInterval(days float64) string {
	d := time.Duration(days * float64(24*time.Hour)).Round(time.Minute)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	case days < 60:
		return fmt.Sprintf("%.0fd", days)
	case days < 365:
		return fmt.Sprintf("%.1fmo", days/30)
	default:
		return fmt.Sprintf("%.1fy", days/365)
	}
}
