// Package timeline computes OPT application windows and deadlines from a
// program end date. All calculations are pure and day-granular.
package timeline

import (
	"fmt"
	"time"
)

// Window geometry in days relative to the program end date.
const (
	WindowDays            = 90
	GracePeriodDays       = 60
	RecommendedBufferDays = 30
	PreparationDays       = 120
)

const dateLayout = "2006-01-02"

// Status names the phase of the application window a date falls in.
type Status string

const (
	StatusFarBeforeWindow  Status = "far_before_window"
	StatusBeforeWindow     Status = "before_window"
	StatusInWindow         Status = "in_window"
	StatusInWindowUrgent   Status = "in_window_urgent"
	StatusInWindowCritical Status = "in_window_critical"
	StatusGracePeriod      Status = "grace_period"
	StatusExpired          Status = "expired"
)

// Urgency ranks how soon the user has to act.
type Urgency string

const (
	UrgencyNone     Urgency = "none"
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Warning flags a condition the user should not miss.
type Warning struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Action   string `json:"action,omitempty"`
}

// Assessment is the full timeline picture for one program end date.
// Dates are YYYY-MM-DD strings; day counts are negative once passed.
type Assessment struct {
	ProgramEndDate     string    `json:"program_end_date"`
	WindowOpens        string    `json:"opt_window_opens"`
	RecommendedApplyBy string    `json:"recommended_apply_by"`
	LastDayToApply     string    `json:"last_day_to_apply"`
	GracePeriodEnds    string    `json:"grace_period_ends"`
	DaysUntilWindow    int       `json:"days_until_window"`
	DaysUntilDeadline  int       `json:"days_until_deadline"`
	DaysUntilGraceEnd  int       `json:"days_until_grace_end"`
	Status             Status    `json:"status"`
	Urgency            Urgency   `json:"urgency"`
	StatusMessage      string    `json:"status_message"`
	ActionItems        []string  `json:"action_items"`
	Warnings           []Warning `json:"warnings"`
}

// Assess computes the timeline for a YYYY-MM-DD program end date,
// evaluated as of today.
func Assess(programEndDate string) (*Assessment, error) {
	return AssessAt(programEndDate, time.Now())
}

// AssessAt is Assess with an explicit evaluation date.
func AssessAt(programEndDate string, today time.Time) (*Assessment, error) {
	end, err := time.Parse(dateLayout, programEndDate)
	if err != nil {
		return nil, fmt.Errorf("timeline: parse program end date %q: %w", programEndDate, err)
	}
	today = truncateDay(today)

	windowOpens := end.AddDate(0, 0, -WindowDays)
	recommended := end.AddDate(0, 0, -RecommendedBufferDays)
	graceEnd := end.AddDate(0, 0, GracePeriodDays)

	a := &Assessment{
		ProgramEndDate:     programEndDate,
		WindowOpens:        windowOpens.Format(dateLayout),
		RecommendedApplyBy: recommended.Format(dateLayout),
		LastDayToApply:     end.Format(dateLayout),
		GracePeriodEnds:    graceEnd.Format(dateLayout),
		DaysUntilWindow:    daysBetween(today, windowOpens),
		DaysUntilDeadline:  daysBetween(today, end),
		DaysUntilGraceEnd:  daysBetween(today, graceEnd),
	}
	a.Status, a.Urgency, a.StatusMessage = phase(today, windowOpens, end, graceEnd)
	a.ActionItems = actionItems(a)
	a.Warnings = warnings(a)
	return a, nil
}

// Eligible reports whether the grace period is still running as of today,
// i.e. the student can still act on this program end date.
func Eligible(programEndDate string, today time.Time) bool {
	end, err := time.Parse(dateLayout, programEndDate)
	if err != nil {
		return false
	}
	return !truncateDay(today).After(end.AddDate(0, 0, GracePeriodDays))
}

func phase(today, windowOpens, end, graceEnd time.Time) (Status, Urgency, string) {
	switch {
	case today.Before(windowOpens):
		days := daysBetween(today, windowOpens)
		if days > PreparationDays {
			return StatusFarBeforeWindow, UrgencyNone,
				"Your OPT window is not open yet. Start preparing soon."
		}
		return StatusBeforeWindow, UrgencyLow,
			fmt.Sprintf("Your OPT window opens in %d days. Time to prepare.", days)

	case !today.After(end):
		days := daysBetween(today, end)
		switch {
		case days <= 7:
			return StatusInWindowCritical, UrgencyCritical,
				fmt.Sprintf("URGENT: only %d days left to apply.", days)
		case days <= 30:
			return StatusInWindowUrgent, UrgencyHigh,
				fmt.Sprintf("Application deadline approaching: %d days remaining.", days)
		default:
			return StatusInWindow, UrgencyMedium,
				fmt.Sprintf("Your OPT window is open. %d days to apply.", days)
		}

	case !today.After(graceEnd):
		days := daysBetween(today, graceEnd)
		return StatusGracePeriod, UrgencyHigh,
			fmt.Sprintf("You are in the 60-day grace period. %d days remaining.", days)

	default:
		return StatusExpired, UrgencyCritical,
			"Grace period has ended. Immediate action required."
	}
}

func actionItems(a *Assessment) []string {
	switch a.Status {
	case StatusFarBeforeWindow:
		return []string{
			"Review OPT eligibility requirements",
			"Start saving for the USCIS filing fee",
			"Familiarize yourself with Form I-765",
			"Keep your passport valid for at least 6 months",
			fmt.Sprintf("OPT window opens in %d days", a.DaysUntilWindow),
		}
	case StatusBeforeWindow:
		return []string{
			"Gather required documents (passport, I-20, transcripts)",
			"Get recent passport photos taken",
			"Download and review Form I-765",
			"Prepare the filing fee (check or money order)",
			"Schedule a meeting with your DSO for a signature",
			fmt.Sprintf("Window opens on %s", a.WindowOpens),
		}
	case StatusInWindow:
		return []string{
			"Complete the I-765 application form",
			"Get the DSO signature on your I-20",
			"Make two sets of copies of all documents",
			"Review the USCIS mailing address",
			fmt.Sprintf("Recommended to apply by %s", a.RecommendedApplyBy),
			fmt.Sprintf("%d days remaining", a.DaysUntilDeadline),
		}
	case StatusInWindowUrgent:
		return []string{
			"URGENT: apply as soon as possible",
			"Complete the I-765 form today",
			"Get the DSO signature immediately",
			"Use certified mail with tracking",
			fmt.Sprintf("Deadline: %s (%d days)", a.LastDayToApply, a.DaysUntilDeadline),
		}
	case StatusInWindowCritical:
		return []string{
			"CRITICAL: apply immediately",
			"Complete the I-765 now",
			"Visit your DSO today for a signature",
			"Use overnight or express mail",
			fmt.Sprintf("Final deadline: %s", a.LastDayToApply),
		}
	case StatusGracePeriod:
		return []string{
			"You are in the 60-day grace period after graduation",
			"If you applied for OPT, track the application status online",
			"If you did not apply, discuss other options with your DSO",
			"You cannot work until the EAD card is received",
			fmt.Sprintf("Grace period ends: %s", a.GracePeriodEnds),
		}
	case StatusExpired:
		return []string{
			"Grace period has ended",
			"You may be out of status",
			"Contact an immigration attorney immediately",
			"Do not work without proper authorization",
		}
	default:
		return []string{"Contact your DSO for guidance"}
	}
}

func warnings(a *Assessment) []Warning {
	var out []Warning
	switch a.Status {
	case StatusInWindowCritical:
		out = append(out, Warning{
			Severity: "critical",
			Message:  "Less than 7 days to apply for OPT. Apply immediately to avoid missing the deadline.",
			Action:   "Visit your DSO today",
		})
	case StatusExpired:
		out = append(out, Warning{
			Severity: "critical",
			Message:  "Grace period has ended. You may be out of status and need legal advice.",
			Action:   "Contact an immigration attorney",
		})
	case StatusInWindowUrgent:
		out = append(out, Warning{
			Severity: "high",
			Message:  "Less than 30 days to apply. Start your application now.",
			Action:   "Begin the I-765 application immediately",
		})
	case StatusGracePeriod:
		out = append(out, Warning{
			Severity: "high",
			Message:  "You are in your 60-day grace period and cannot work without an EAD card.",
			Action:   "Track your OPT application status",
		})
	}
	switch a.Status {
	case StatusInWindow, StatusInWindowUrgent, StatusInWindowCritical:
		out = append(out, Warning{
			Severity: "info",
			Message:  "USCIS processing typically takes 90 to 120 days. Apply early.",
		})
	}
	return out
}

// Headline is a short display label for the assessment status.
func (a *Assessment) Headline() string {
	switch a.Status {
	case StatusFarBeforeWindow:
		return "Planning Phase"
	case StatusBeforeWindow:
		return "Preparation Phase"
	case StatusInWindow:
		return "Application Window Open"
	case StatusInWindowUrgent:
		return "Deadline Approaching"
	case StatusInWindowCritical:
		return "Apply Now"
	case StatusGracePeriod:
		return "Grace Period"
	case StatusExpired:
		return "Grace Period Ended"
	}
	return "Unknown"
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
