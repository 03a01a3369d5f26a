package skill

import "github.com/nidhogg/skillgate/internal/access"

// RegisterBuiltins adds the default built-in skills to the manager.
func RegisterBuiltins(mgr *Manager) {
	builtins := []*Skill{
		{
			Slug:        "candidate-pipeline-digest",
			Name:        "Candidate Pipeline Digest",
			Description: "Summarize open requisitions and email the hiring team",
			Category:    "recruiting",
			Requirements: access.Requirements{
				access.CategoryATS:   access.LevelReadOnly,
				access.CategoryEmail: access.LevelReadWrite,
			},
			Instructions: "Use the {{ATS_PROVIDER}} API at {{ATS_BASE_URL}} with token {{ATS_TOKEN}} " +
				"to list open jobs and active candidates. Summarize each pipeline stage, then send " +
				"the digest through {{EMAIL_PROVIDER}} using token {{EMAIL_TOKEN}}.",
		},
		{
			Slug:        "meeting-prep",
			Name:        "Meeting Prep",
			Description: "Brief the user before each meeting on today's calendar",
			Category:    "productivity",
			Requirements: access.Requirements{
				access.CategoryCalendar: access.LevelReadOnly,
				access.CategoryLLM:      access.LevelReadOnly,
			},
			Instructions: "Read today's events from {{CALENDAR_PROVIDER}} with token {{CALENDAR_TOKEN}}. " +
				"For each meeting, draft a short brief with {{LLM_PROVIDER}} model {{LLM_MODEL}} " +
				"(key {{LLM_API_KEY}}).",
		},
		{
			Slug:        "inbox-triage",
			Name:        "Inbox Triage",
			Description: "Label and draft replies for unread email",
			Category:    "productivity",
			Requirements: access.Requirements{
				access.CategoryEmail: access.LevelReadWrite,
				access.CategoryLLM:   access.LevelReadOnly,
			},
			Instructions: "Fetch unread threads from {{EMAIL_PROVIDER}} using {{EMAIL_TOKEN}}. " +
				"Classify each with {{LLM_MODEL}} and save draft replies.",
		},
		{
			Slug:        "sheet-report",
			Name:        "Sheet Report",
			Description: "Build a weekly report from a spreadsheet",
			Category:    "reporting",
			Requirements: access.Requirements{
				access.CategoryDatabase: access.LevelReadOnly,
			},
			Instructions: "Read the configured sheet from {{DATABASE_PROVIDER}} at {{DATABASE_BASE_URL}} " +
				"with token {{SHEETS_TOKEN}} and summarize week-over-week changes.",
		},
	}
	for _, s := range builtins {
		s.Visibility = VisibilityOrganization
		s.IsGlobal = true
		s.IsEnabled = true
		s.Source = "builtin"
		mgr.Add(s)
	}
}
