package main

import (
	"context"
	"fmt"
	"time"

	"ascii-arena/internal/seed"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var seedClearFirst bool

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load models, prompts and outputs from a YAML file",
	Long: `Load arena content from a YAML seed file. Models start at the default
rating; outputs are matched to models by name.

Examples:
  arena seed data/seed.yaml
  arena seed data/seed.yaml --clear --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedClearFirst, "clear", false, "Delete existing content before seeding")
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := seed.LoadFile(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if seedClearFirst {
		if err := st.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
		log.Info().Msg("existing content cleared")
	}

	sum, err := seed.Apply(ctx, st, f)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d models, %d prompts, %d outputs\n", sum.Models, sum.Prompts, sum.Outputs)
	return nil
}
