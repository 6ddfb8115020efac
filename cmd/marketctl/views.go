package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"automarket/internal/listing"
)

var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Manage listing view counters",
}

var viewsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero the day, week or month view counter on every listing",
	RunE:  runViewsReset,
}

func init() {
	viewsResetCmd.Flags().String("period", "day", "Counter to reset: day, week, month")
	viewsCmd.AddCommand(viewsResetCmd)
	rootCmd.AddCommand(viewsCmd)
}

func runViewsReset(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("period")
	period, err := listing.ParsePeriod(raw)
	if err != nil {
		return err
	}

	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	n, err := listing.NewPostgresStore(pool).Listings().ResetViews(cmdContext(cmd), period)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "reset %s views on %d listing(s)\n", period, n)
	return nil
}
