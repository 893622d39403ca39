package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zatekoja/carecompanion/internal/application/services"
)

func newMedsCmd(root *rootOptions, build Builder) *cobra.Command {
	var profile profileFlags

	cmd := &cobra.Command{
		Use:   "meds [symptoms...]",
		Short: "Suggest over-the-counter medications for symptoms",
		Long:  "Match the described symptoms against the medication catalog and screen every match against your profile.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(cmd.Context(), root.offline)
			if err != nil {
				return err
			}

			rec, err := app.Medications.Recommend(cmd.Context(), services.RecommendRequest{
				Text:    strings.Join(args, " "),
				Profile: profile.profile(),
			})
			if err != nil {
				return fmt.Errorf("recommend: %w", err)
			}

			if root.format == formatText {
				writeRecommendation(cmd.OutOrStdout(), rec)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	profile.register(cmd)
	return cmd
}

func writeRecommendation(w io.Writer, rec *services.Recommendation) {
	fmt.Fprintf(w, "Symptoms: %s\n", rec.Query)
	if rec.Intent.Label != "" {
		fmt.Fprintf(w, "Matched: %s\n", rec.Intent.Label)
	}
	for _, n := range rec.Notices {
		fmt.Fprintf(w, "Note: %s\n", n)
	}

	if len(rec.Medications) == 0 {
		fmt.Fprintln(w, "\nNo medications found.")
		if rec.EmptyReason != "" {
			fmt.Fprintln(w, rec.EmptyReason)
		}
	} else {
		fmt.Fprintln(w)
	}
	for i, m := range rec.Medications {
		fmt.Fprintf(w, "%d. %s [%s]\n", i+1, m.Name, m.Safety.Status)
		if m.Dosage != "" {
			fmt.Fprintf(w, "   Dosage: %s", m.Dosage)
			if m.Frequency != "" {
				fmt.Fprintf(w, ", %s", m.Frequency)
			}
			fmt.Fprintln(w)
		}
		if m.Indication != "" {
			fmt.Fprintf(w, "   For: %s\n", m.Indication)
		}
		for _, warning := range m.Safety.Warnings {
			fmt.Fprintf(w, "   ! %s\n", warning)
		}
	}

	if len(rec.Advice) > 0 {
		fmt.Fprintln(w, "\nSelf-care:")
		for _, a := range rec.Advice {
			fmt.Fprintf(w, "- %s: %s\n", a.Title, a.Content)
		}
	}
}
