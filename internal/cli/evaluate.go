package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zatekoja/carecompanion/internal/evaluation"
)

const defaultGoldenPath = "config/golden_queries.yaml"

func newEvaluateCmd(root *rootOptions, build Builder) *cobra.Command {
	var (
		goldenPath string
		k          int
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score medication recommendations against a golden query set",
		Long: "Run every golden query through the recommender and report Recall@K, MRR@K, " +
			"intent label accuracy and safety violations. Exits non-zero when a guardrail is breached.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := evaluation.LoadGoldenSet(goldenPath)
			if err != nil {
				return err
			}

			app, err := build(cmd.Context(), root.offline)
			if err != nil {
				return err
			}

			summary, err := evaluation.NewRunner(app.Medications, k).Run(cmd.Context(), set.Queries)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}

			if root.format == formatText {
				writeSummary(cmd.OutOrStdout(), summary)
			} else if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}

			if breaches := evaluation.NewGuardrails(set.Guardrails).Check(summary); len(breaches) > 0 {
				return fmt.Errorf("guardrails breached: %s", strings.Join(breaches, "; "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&goldenPath, "golden", defaultGoldenPath, "Golden query set (YAML)")
	cmd.Flags().IntVar(&k, "k", evaluation.DefaultK, "Cutoff for Recall@K and MRR@K")
	return cmd
}

func writeSummary(w io.Writer, s *evaluation.EvalSummary) {
	fmt.Fprintf(w, "Queries: %d (%d with results, %d failed)\n", s.TotalQueries, s.QueriesWithHits, s.FailedQueries)
	fmt.Fprintf(w, "Recall@%d: %.3f  MRR@%d: %.3f  Label accuracy: %.3f\n", s.K, s.AvgRecallAtK, s.K, s.AvgMRRAtK, s.LabelAccuracy)
	fmt.Fprintf(w, "Safety violations: %d  Avg latency: %s\n", s.SafetyViolations, s.AvgLatency)

	difficulties := make([]string, 0, len(s.ByDifficulty))
	for d := range s.ByDifficulty {
		difficulties = append(difficulties, string(d))
	}
	sort.Strings(difficulties)
	for _, d := range difficulties {
		sub := s.ByDifficulty[evaluation.Difficulty(d)]
		fmt.Fprintf(w, "  %-6s n=%d recall=%.3f mrr=%.3f\n", d, sub.Count, sub.AvgRecallAtK, sub.AvgMRRAtK)
	}

	for _, r := range s.Results {
		if r.Error == "" && len(r.Violations) == 0 && r.LabelMatched {
			continue
		}
		fmt.Fprintf(w, "- %s (%q): label=%s", r.QueryID, r.Query, r.Label)
		if r.Error != "" {
			fmt.Fprintf(w, " error=%s", r.Error)
		}
		for _, v := range r.Violations {
			fmt.Fprintf(w, "\n    ! %s", v)
		}
		fmt.Fprintln(w)
	}
}
