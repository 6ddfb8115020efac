package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"automarket/internal/catalog"
	"automarket/internal/listing"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain brands and models",
}

var catalogAddBrandCmd = &cobra.Command{
	Use:   "add-brand <name>",
	Short: "Add a brand",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogAddBrand,
}

var catalogAddModelCmd = &cobra.Command{
	Use:   "add-model <name>",
	Short: "Add a model under a brand",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogAddModel,
}

func init() {
	catalogAddModelCmd.Flags().Int64("brand-id", 0, "Brand the model belongs to")
	_ = catalogAddModelCmd.MarkFlagRequired("brand-id")

	catalogCmd.AddCommand(catalogAddBrandCmd, catalogAddModelCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogAddBrand(cmd *cobra.Command, args []string) error {
	name, err := catalog.NormalizeName("brand", args[0])
	if err != nil {
		return err
	}

	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	b, err := listing.NewPostgresStore(pool).Catalog().AddBrand(cmdContext(cmd), name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "brand %d %s\n", b.ID, b.Name)
	return nil
}

func runCatalogAddModel(cmd *cobra.Command, args []string) error {
	brandID, _ := cmd.Flags().GetInt64("brand-id")
	name, err := catalog.NormalizeName("model", args[0])
	if err != nil {
		return err
	}

	pool, err := connect(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()

	m, err := listing.NewPostgresStore(pool).Catalog().AddModel(cmdContext(cmd), brandID, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "model %d %s (brand %d)\n", m.ID, m.Name, m.BrandID)
	return nil
}
