package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"visatrack/internal/api"
)

func policiesCmd(app *cli) *cobra.Command {
	var (
		visaType string
		impact   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List tracked immigration policy updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.client().Policies(cmd.Context(), api.PolicyQuery{
				VisaType:    visaType,
				ImpactLevel: impact,
				Limit:       limit,
			})
			if err != nil {
				return friendly(err)
			}
			out := cmd.OutOrStdout()
			if list.Count == 0 {
				fmt.Fprintln(out, "No policy updates match.")
				return nil
			}
			for i, p := range list.Policies {
				if i > 0 {
					fmt.Fprintln(out)
				}
				renderPolicy(out, p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&visaType, "visa", "", "only updates affecting this visa type (F-1, J-1, H-1B)")
	cmd.Flags().StringVar(&impact, "impact", "", "only updates at this impact level (high, medium, low)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of updates")
	return cmd
}

func renderPolicy(out io.Writer, p api.PolicyUpdate) {
	fmt.Fprintf(out, "[%s] %s\n", strings.ToUpper(p.ImpactLevel), p.Title)
	if p.PublishedAt != nil {
		fmt.Fprintf(out, "  published: %s\n", p.PublishedAt.Format("2006-01-02"))
	}
	if len(p.AffectedVisas) > 0 {
		fmt.Fprintf(out, "  affects:   %s\n", strings.Join(p.AffectedVisas, ", "))
	}
	fmt.Fprintf(out, "  %s\n", p.Summary)
	for _, item := range p.ActionItems {
		fmt.Fprintf(out, "  - %s\n", item)
	}
	if p.SourceURL != "" {
		fmt.Fprintf(out, "  source: %s\n", p.SourceURL)
	}
}
