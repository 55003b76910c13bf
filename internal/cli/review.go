package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/engine"
	"github.com/lazypower/cadence/internal/fsrs"
)

const maxPersistRetries = 3

var reviewUser string

var reviewCmd = &cobra.Command{
	Use:   "review [deck-id]",
	Short: "Study a deck's due cards",
	Long: `Starts a study session. Each card's front is shown; press enter to see
the back, then rate it: 1/again, 2/hard, 3/good, 4/easy. q quits; every
rating is already saved when the next card appears.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()
		return runReview(cmd.Context(), a, args[0], cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewUser, "user", "", "user id recorded on review logs")
}

func runReview(ctx context.Context, a *app, deckID string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := a.engine.StartSession(ctx, deckID, reviewUser)
	if err != nil {
		return err
	}

	total := st.Queue.Stats().Total
	if total == 0 {
		fmt.Fprintln(out, "Nothing due. Come back later.")
		return nil
	}
	fmt.Fprintf(out, "%d cards to study.\n", total)

	lines := bufio.NewScanner(in)
	for {
		card, ok := a.engine.Next(st)
		if !ok {
			break
		}
		rec, err := a.db.GetCard(ctx, card.ID)
		if err != nil {
			return err
		}
		front, back := "(deleted card)", ""
		if rec != nil {
			front, back = rec.Front, rec.Back
		}

		stats := st.Queue.Stats()
		fmt.Fprintf(out, "\n[%d/%d] %s\n", stats.Completed+1, stats.Total, front)
		if !lines.Scan() {
			break
		}
		if isQuit(lines.Text()) {
			break
		}
		fmt.Fprintf(out, "  %s\n", back)

		rating, quit := readRating(lines, out)
		if quit {
			break
		}
		if err := gradeWithRetry(ctx, a.engine, st, card.ID, rating, out); err != nil {
			return err
		}
	}

	s := st.Queue.Stats()
	fmt.Fprintf(out, "\nDone: %d reviews, %d cards (%d new, %d review).\n",
		s.Completed, s.UniqueCompleted, s.UniqueNew, s.UniqueReview)
	return nil
}

func readRating(lines *bufio.Scanner, out io.Writer) (fsrs.Rating, bool) {
	for {
		fmt.Fprint(out, "  rate [1 again, 2 hard, 3 good, 4 easy]: ")
		if !lines.Scan() {
			return 0, true
		}
		text := strings.TrimSpace(strings.ToLower(lines.Text()))
		if isQuit(text) {
			return 0, true
		}
		if r, ok := parseRatingInput(text); ok {
			return r, false
		}
		fmt.Fprintln(out, "  ?")
	}
}

func parseRatingInput(s string) (fsrs.Rating, bool) {
	switch s {
	case "1":
		return fsrs.Again, true
	case "2":
		return fsrs.Hard, true
	case "3":
		return fsrs.Good, true
	case "4":
		return fsrs.Easy, true
	}
	r, err := fsrs.ParseRating(s)
	return r, err == nil
}

func isQuit(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s == "q" || s == "quit"
}

// gradeWithRetry grades once and, if only the write failed, retries the
// same result instead of grading again.
func gradeWithRetry(ctx context.Context, eng *engine.Engine, st *engine.Study, cardID string, rating fsrs.Rating, out io.Writer) error {
	res, err := eng.Grade(ctx, st, cardID, rating)
	var pe *engine.PersistenceError
	for attempt := 1; errors.As(err, &pe) && attempt <= maxPersistRetries; attempt++ {
		fmt.Fprintf(out, "  save failed (%v), retrying\n", pe.Err)
		err = eng.RetryPersist(ctx, st, pe.Result)
	}
	if err != nil {
		return err
	}
	if pe == nil {
		fmt.Fprintf(out, "  next in %s\n", humanInterval(res.Card.ScheduledDays))
	}
	return nil
}
