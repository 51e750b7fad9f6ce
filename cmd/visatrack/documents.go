package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"visatrack/internal/api"
	"visatrack/internal/ingest"
)

func uploadCmd(app *cli) *cobra.Command {
	var docType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document and wait for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pipe := &ingest.Pipeline{
				Backend:    app.client(),
				Uploader:   http.DefaultClient,
				OnState:    statePrinter(out),
				OnSnapshot: stagePrinter(out),
			}
			state, err := pipe.Ingest(cmd.Context(), ingest.IngestRequest{
				FileName:     filepath.Base(path),
				DocumentType: docType,
				Size:         info.Size(),
				Content:      f,
			})
			if err != nil {
				return friendly(err)
			}
			renderOutcome(out, state)
			return nil
		},
	}
	cmd.Flags().StringVar(&docType, "type", "i20", fmt.Sprintf("document type (%s)", strings.Join(api.DocumentTypes, ", ")))
	return cmd
}

func listCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := app.client().ListDocuments(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents yet. Upload one with `visatrack upload <file>`.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tFILE\tSTATUS\tUPLOADED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.DocumentType, d.FileName, d.Status, d.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
}

func statusCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id>",
		Short: "Show a document's processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := app.client().Status(cmd.Context(), args[0])
			if err != nil {
				return friendly(err)
			}
			renderSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func verifyCmd(app *cli) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "verify <document-id>",
		Short: "Confirm or correct extracted fields awaiting review",
		Long: `Confirm or correct extracted fields awaiting review.

Pass corrected values with repeated --set flags; fields left out keep
their extracted values:

  visatrack verify doc-123 --set sevis_id=N0012345678 --set program_end_date=2026-05-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			corrections, err := parseCorrections(sets)
			if err != nil {
				return err
			}
			if err := app.client().SubmitCorrections(cmd.Context(), args[0], corrections); err != nil {
				return friendly(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Verified. The document is now marked completed.")
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value correction, repeatable")
	return cmd
}

func deleteCmd(app *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client().DeleteDocument(cmd.Context(), args[0]); err != nil {
				return friendly(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Document deleted.")
			return nil
		},
	}
}

func parseCorrections(sets []string) (map[string]string, error) {
	corrections := make(map[string]string, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid correction %q, expected field=value", s)
		}
		if !validFieldName(name) {
			return nil, fmt.Errorf("unknown field %q, expected one of: %s", name, strings.Join(api.FieldNames, ", "))
		}
		corrections[name] = value
	}
	return corrections, nil
}

func validFieldName(name string) bool {
	for _, f := range api.FieldNames {
		if f == name {
			return true
		}
	}
	return false
}

// statePrinter announces each pipeline phase once, swallowing the
// per-percent Uploading updates.
func statePrinter(w io.Writer) func(ingest.State) {
	var last string
	return func(s ingest.State) {
		kind := fmt.Sprintf("%T", s)
		if kind == last {
			return
		}
		last = kind
		switch st := s.(type) {
		case ingest.Uploading:
			fmt.Fprintf(w, "Uploading %s...\n", st.FileName)
		case ingest.Processing:
			fmt.Fprintf(w, "Processing document %s...\n", st.DocumentID)
		}
	}
}

func stagePrinter(w io.Writer) func(*api.StatusSnapshot) {
	var last string
	return func(snap *api.StatusSnapshot) {
		if snap.Stage == "" || snap.Stage == last || snap.Status.Terminal() {
			return
		}
		last = snap.Stage
		fmt.Fprintf(w, "  stage: %s\n", snap.Stage)
	}
}

func renderOutcome(w io.Writer, state ingest.State) {
	switch st := state.(type) {
	case ingest.Success:
		fmt.Fprintf(w, "Done. Document %s processed.\n\n", st.DocumentID)
		renderExtracted(w, &st.Data)
	case ingest.NeedsVerification:
		fmt.Fprintf(w, "Document %s processed, but some fields need review.\n\n", st.DocumentID)
		renderExtracted(w, &st.Data)
		fmt.Fprintf(w, "\nConfirm or correct them with `visatrack verify %s --set field=value`.\n", st.DocumentID)
	}
}

func renderSnapshot(w io.Writer, snap *api.StatusSnapshot) {
	fmt.Fprintf(w, "Document: %s\n", snap.DocumentID)
	fmt.Fprintf(w, "Status:   %s\n", snap.Status)
	if snap.Stage != "" && !snap.Status.Terminal() {
		fmt.Fprintf(w, "Stage:    %s\n", snap.Stage)
	}
	if snap.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:    %s\n", snap.ErrorMessage)
	}
	if snap.ExtractedData != nil {
		fmt.Fprintln(w)
		renderExtracted(w, snap.ExtractedData)
	}
	for _, v := range snap.ValidationErrors {
		fmt.Fprintf(w, "%s [%s]: %s\n", v.Field, v.Severity, v.Message)
		if v.Suggestion != "" {
			fmt.Fprintf(w, "  suggestion: %s\n", v.Suggestion)
		}
	}
}

func renderExtracted(w io.Writer, data *api.ExtractedData) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range api.FieldNames {
		f := data.Field(name)
		mark := ""
		if f.Confidence < ingest.ConfidenceThreshold {
			mark = "  (low confidence)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.0f%%%s\n", name, valueOrDash(f.Value), f.Confidence*100, mark)
	}
	tw.Flush()
	if data.OPTEligible {
		fmt.Fprintln(w, "\nOPT eligible: yes")
	}
	if data.Timeline != nil {
		fmt.Fprintf(w, "Timeline: %s (%s)\n", data.Timeline.Headline(), data.Timeline.StatusMessage)
	}
}

func valueOrDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
