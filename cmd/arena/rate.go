package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"ascii-arena/internal/elo"

	"github.com/spf13/cobra"
)

var (
	rateWinner      float64
	rateLoser       float64
	rateWinnerVotes int
	rateLoserVotes  int
	rateFormat      string
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Compute the rating change for one vote without storing anything",
	Long: `Run the rating engine for a single outcome.

Examples:
  arena rate
  arena rate --winner 1400 --loser 1600 --winner-votes 3 --loser-votes 250
  arena rate --format json`,
	Args: cobra.NoArgs,
	RunE: runRate,
}

func init() {
	rootCmd.AddCommand(rateCmd)
	rateCmd.Flags().Float64Var(&rateWinner, "winner", elo.DefaultRating, "Winner's current rating")
	rateCmd.Flags().Float64Var(&rateLoser, "loser", elo.DefaultRating, "Loser's current rating")
	rateCmd.Flags().IntVar(&rateWinnerVotes, "winner-votes", 0, "Votes the winner has received so far")
	rateCmd.Flags().IntVar(&rateLoserVotes, "loser-votes", 0, "Votes the loser has received so far")
	rateCmd.Flags().StringVar(&rateFormat, "format", "table", "Output format (table|json)")
}

func runRate(cmd *cobra.Command, args []string) error {
	if err := elo.ValidateRating(rateWinner); err != nil {
		return fmt.Errorf("--winner: %w", err)
	}
	if err := elo.ValidateRating(rateLoser); err != nil {
		return fmt.Errorf("--loser: %w", err)
	}
	if err := elo.ValidateVoteCount(rateWinnerVotes); err != nil {
		return fmt.Errorf("--winner-votes: %w", err)
	}
	if err := elo.ValidateVoteCount(rateLoserVotes); err != nil {
		return fmt.Errorf("--loser-votes: %w", err)
	}

	outcome := elo.Outcome{
		WinnerRating:    rateWinner,
		LoserRating:     rateLoser,
		WinnerVoteCount: rateWinnerVotes,
		LoserVoteCount:  rateLoserVotes,
	}
	res := elo.NewCalculator().Apply(outcome)

	out := cmd.OutOrStdout()
	switch rateFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SIDE\tRATING\tVOTES\tK\tNEW\tCHANGE")
		fmt.Fprintf(w, "winner\t%.0f\t%d\t%.2f\t%d\t%+d\n", rateWinner, rateWinnerVotes, res.WinnerK, res.WinnerNewRating, res.WinnerDelta)
		fmt.Fprintf(w, "loser\t%.0f\t%d\t%.2f\t%d\t%+d\n", rateLoser, rateLoserVotes, res.LoserK, res.LoserNewRating, res.LoserDelta)
		fmt.Fprintf(w, "\nexpected winner score: %.4f\n", res.WinnerExpected)
		return w.Flush()
	default:
		return fmt.Errorf("unknown format %q", rateFormat)
	}
}
