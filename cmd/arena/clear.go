package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var clearConfirmed bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all models, prompts, outputs and votes (the audit log is kept)",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "Confirm deletion")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearConfirmed {
		return errors.New("refusing to clear without --yes")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Database cleared successfully")
	return nil
}
