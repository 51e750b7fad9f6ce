package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"visatrack/internal/timeline"
)

func timelineCmd(app *cli) *cobra.Command {
	var endDate string

	cmd := &cobra.Command{
		Use:   "timeline [program-end-date]",
		Short: "Show the OPT application timeline for a program end date",
		Long: `Show the OPT application timeline for a program end date.

The date may be given as an argument or with --end-date, in YYYY-MM-DD
form. The computation is local and needs no backend.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := endDate
			if len(args) == 1 {
				date = args[0]
			}
			if date == "" {
				return fmt.Errorf("program end date required, e.g. `visatrack timeline 2026-05-15`")
			}
			a, err := timeline.Assess(date)
			if err != nil {
				return err
			}
			renderAssessment(cmd, a)
			return nil
		},
	}
	cmd.Flags().StringVar(&endDate, "end-date", "", "program end date (YYYY-MM-DD)")
	return cmd
}

func renderAssessment(cmd *cobra.Command, a *timeline.Assessment) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s\n", a.Headline())
	fmt.Fprintf(out, "%s\n\n", a.StatusMessage)

	fmt.Fprintf(out, "Program ends:        %s\n", a.ProgramEndDate)
	fmt.Fprintf(out, "Window opens:        %s\n", a.WindowOpens)
	fmt.Fprintf(out, "Recommended apply:   %s\n", a.RecommendedApplyBy)
	fmt.Fprintf(out, "Last day to apply:   %s\n", a.LastDayToApply)
	fmt.Fprintf(out, "Grace period ends:   %s\n", a.GracePeriodEnds)

	if len(a.ActionItems) > 0 {
		fmt.Fprintln(out, "\nAction items:")
		for _, item := range a.ActionItems {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
	for _, w := range a.Warnings {
		fmt.Fprintf(out, "\n[%s] %s\n", strings.ToUpper(w.Severity), w.Message)
		if w.Action != "" {
			fmt.Fprintf(out, "  -> %s\n", w.Action)
		}
	}
}
