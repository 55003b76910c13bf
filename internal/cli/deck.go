package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Manage decks",
}

var deckCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a deck with the configured default parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		d, err := a.db.CreateDeck(context.Background(), args[0], a.cfg.Scheduler.DeckDefaults())
		if err != nil {
			return fmt.Errorf("create deck: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), d.ID)
		return nil
	},
}

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decks with what is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		decks, err := a.db.ListDecks(ctx)
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No decks yet. Create one with: cadence deck create <name>")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tNEW\tLEARNING\tREVIEW")
		for _, d := range decks {
			c, err := a.engine.DeckCounts(ctx, d.ID, "")
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", d.ID, d.Name, c.AvailableNew, c.DueLearning, c.AvailableReview)
		}
		return tw.Flush()
	},
}

var deckParamsCmd = &cobra.Command{
	Use:   "params [deck-id] [json-file]",
	Short: "Show a deck's parameters, or update them from a JSON file",
	Long:  "With one argument, prints the deck's parameters as JSON. With a file, applies the fields it sets and keeps the rest.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		p, err := a.db.GetSchedulerParameters(ctx, args[0])
		if err != nil {
			return err
		}
		if len(args) == 2 {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("parse %s: %w", args[1], err)
			}
			if err := a.db.UpdateDeckParameters(ctx, args[0], p); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

var deckDeleteCmd = &cobra.Command{
	Use:   "delete [deck-id]",
	Short: "Delete a deck and its cards (review history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.close()
		return a.db.DeleteDeck(context.Background(), args[0])
	},
}

func init() {
	deckCmd.AddCommand(deckCreateCmd)
	deckCmd.AddCommand(deckListCmd)
	deckCmd.AddCommand(deckParamsCmd)
	deckCmd.AddCommand(deckDeleteCmd)
}
