package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"automarket/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(cmdContext(cmd), pool); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
	return nil
}
