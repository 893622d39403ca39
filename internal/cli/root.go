// Package cli implements the companion command line tool.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
)

const (
	formatJSON = "json"
	formatText = "text"
)

// Builder constructs the App for one invocation. offline disables every
// network lookup.
type Builder func(ctx context.Context, offline bool) (*App, error)

type rootOptions struct {
	format  string
	offline bool
}

// NewRootCmd returns the top-level command with every subcommand attached
func NewRootCmd(build Builder) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "companion",
		Short: "Care companion: medication suggestions and nearby hospitals",
		Long: "Suggests over-the-counter medications for symptoms, screened against your profile, " +
			"and lists nearby healthcare facilities ranked for you.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatJSON && opts.format != formatText {
				return fmt.Errorf("unknown format %q: use json or text", opts.format)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.format, "format", "f", formatJSON, "Output format: json or text")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "Skip network lookups and use local data only")

	root.AddCommand(
		newMedsCmd(opts, build),
		newFacilitiesCmd(opts, build),
		newDistanceCmd(opts),
		newEvaluateCmd(opts, build),
	)
	return root
}

type profileFlags struct {
	pregnant   bool
	conditions []string
}

func (p *profileFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.pregnant, "pregnant", false, "Screen results for pregnancy")
	cmd.Flags().StringArrayVar(&p.conditions, "condition", nil, "Medical condition (repeatable)")
}

func (p *profileFlags) profile() entities.UserProfile {
	return entities.UserProfile{
		IsPregnant:        p.pregnant,
		MedicalConditions: append([]string{}, p.conditions...),
	}
}
