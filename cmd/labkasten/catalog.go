package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-arndt/labkasten/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and seed the lab catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog labs",
	RunE:  runCatalogList,
}

var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the configured labs into the catalog",
	RunE:  runCatalogSeed,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd, catalogSeedCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()

	labs, err := st.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list labs: %w", err)
	}
	if len(labs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No labs in catalog. Seed it with: labkasten catalog seed")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIFFICULTY\tIMAGE\tPORT")
	for _, e := range labs {
		image, port := "-", "-"
		if e.Containerized() {
			image = e.Image
			if e.InternalPort > 0 {
				port = fmt.Sprint(e.InternalPort)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Difficulty, image, port)
	}
	return w.Flush()
}

func runCatalogSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()

	n, err := st.Seed(cmd.Context(), cfg.Labs)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d labs into %s\n", n, cfg.DBPath)
	return nil
}
