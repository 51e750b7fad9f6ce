package processing

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"visatrack/internal/api"
)

const (
	minConfidence = 0.75
	maxDaysPast   = 730
	maxDaysAhead  = 2190
	dateLayout    = "2006-01-02"
)

var sevisPattern = regexp.MustCompile(`^N\d{10}$`)

// requiredFields lists the extracted fields that must carry a value,
// with the display names used in findings.
var requiredFields = []struct{ name, display string }{
	{"full_name", "Student name"},
	{"sevis_id", "SEVIS ID"},
	{"program_end_date", "Program end date"},
	{"school_name", "School name"},
}

// validate checks structured data against the document rules. Critical
// findings mean the extraction cannot be trusted at all; warnings mean
// the user should confirm before the data is relied on.
func validate(data *api.ExtractedData, today time.Time) []api.ValidationError {
	var errs []api.ValidationError

	for _, f := range requiredFields {
		field := data.Field(f.name)
		if strings.TrimSpace(field.Value) == "" {
			errs = append(errs, api.ValidationError{
				Field:      f.name,
				Severity:   api.SeverityCritical,
				Message:    f.display + " is missing and is required",
				Suggestion: "Please upload a clearer document or enter manually",
			})
			continue
		}
		if field.Confidence < minConfidence {
			errs = append(errs, api.ValidationError{
				Field:      f.name,
				Severity:   api.SeverityWarning,
				Message:    fmt.Sprintf("Low confidence (%.0f%%) for %s", field.Confidence*100, f.display),
				Suggestion: "Please verify this value is correct",
				Value:      field.Value,
			})
		}
	}

	if v := data.SevisID.Value; strings.TrimSpace(v) != "" && !sevisPattern.MatchString(v) {
		errs = append(errs, api.ValidationError{
			Field:      "sevis_id",
			Severity:   api.SeverityCritical,
			Message:    fmt.Sprintf("Invalid SEVIS ID format: %q", v),
			Suggestion: `SEVIS ID should be "N" followed by 10 digits (e.g., N0012345678)`,
			Value:      v,
		})
	}

	if v := data.ProgramEndDate.Value; strings.TrimSpace(v) != "" {
		errs = append(errs, validateEndDate(v, today)...)
	}

	if v := data.FullName.Value; v != "" && len(v) < 3 {
		errs = append(errs, api.ValidationError{
			Field:    "full_name",
			Severity: api.SeverityCritical,
			Message:  "Name is too short or missing",
			Value:    v,
		})
	}

	if v := data.SchoolName.Value; v != "" && len(v) < 3 {
		errs = append(errs, api.ValidationError{
			Field:    "school_name",
			Severity: api.SeverityCritical,
			Message:  "School name is too short or missing",
			Value:    v,
		})
	}

	return errs
}

func validateEndDate(value string, today time.Time) []api.ValidationError {
	end, err := time.Parse(dateLayout, value)
	if err != nil {
		return []api.ValidationError{{
			Field:      "program_end_date",
			Severity:   api.SeverityCritical,
			Message:    "Invalid date format for program end date",
			Suggestion: "Date should be in YYYY-MM-DD format",
			Value:      value,
		}}
	}

	var errs []api.ValidationError
	if end.Before(today.AddDate(0, 0, -maxDaysPast)) {
		errs = append(errs, api.ValidationError{
			Field:      "program_end_date",
			Severity:   api.SeverityWarning,
			Message:    fmt.Sprintf("Program end date (%s) is over 2 years ago", value),
			Suggestion: "This may be an old document. Please verify it is your current one.",
			Value:      value,
		})
	}
	if end.After(today.AddDate(0, 0, maxDaysAhead)) {
		errs = append(errs, api.ValidationError{
			Field:      "program_end_date",
			Severity:   api.SeverityWarning,
			Message:    fmt.Sprintf("Program end date (%s) is over 6 years away", value),
			Suggestion: "Please verify this date is correct.",
			Value:      value,
		})
	}
	return errs
}

// criticalFields returns the field names carrying critical findings, in
// the order found.
func criticalFields(errs []api.ValidationError) []string {
	var fields []string
	for _, e := range errs {
		if e.Severity == api.SeverityCritical {
			fields = append(fields, e.Field)
		}
	}
	return fields
}
