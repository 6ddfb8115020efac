package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"automarket/internal/config"
	"automarket/internal/currency"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Inspect and refresh exchange rates",
}

var ratesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch rates from PrivatBank and store them",
	RunE:  runRatesRefresh,
}

var ratesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the latest stored rate of each currency",
	RunE:  runRatesList,
}

func init() {
	ratesRefreshCmd.Flags().String("url", "", "PrivatBank endpoint (default $PRIVATBANK_URL)")
	ratesRefreshCmd.Flags().Int("attempts", 1, "Fetch attempts before giving up")
	ratesListCmd.Flags().String("format", "table", "Output format: json, table")

	ratesCmd.AddCommand(ratesRefreshCmd, ratesListCmd)
	rootCmd.AddCommand(ratesCmd)
}

func runRatesRefresh(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	attempts, _ := cmd.Flags().GetInt("attempts")

	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	if url == "" {
		if cfg, err := config.Load(); err == nil {
			url = cfg.PrivatBankURL
		} else {
			return fmt.Errorf("--url is required without a service configuration: %w", err)
		}
	}

	refresher := currency.NewRefresher(
		currency.NewPrivatBankFetcher(url),
		currency.NewPostgresRepository(pool),
	).WithBackoff(attempts, 5*time.Second)

	rates, err := refresher.Refresh(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	printRates(cmd.OutOrStdout(), rates)
	return nil
}

func runRatesList(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	rates, err := currency.NewPostgresRepository(pool).List(cmdContext(cmd))
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rates)
	default:
		printRates(cmd.OutOrStdout(), rates)
	}
	return nil
}

func printRates(w io.Writer, rates []currency.Rate) {
	if len(rates) == 0 {
		fmt.Fprintln(w, "no rates stored")
		return
	}
	fmt.Fprintf(w, "%-4s %14s  %s\n", "CODE", "PER 1 USD", "UPDATED")
	for _, r := range rates {
		fmt.Fprintf(w, "%-4s %14s  %s\n", r.Code, r.Rate.StringFixed(6), r.UpdatedAt.Format(time.RFC3339))
	}
}
