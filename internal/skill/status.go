package skill

import (
	"fmt"
	"strings"

	"github.com/nidhogg/skillgate/internal/access"
)

// State is the display state of a skill for one user.
type State string

const (
	StateAvailable State = "available"
	StateLimited   State = "limited"
	StateDisabled  State = "disabled"
)

// GuidanceAdminDisabled is shown when an org admin has turned a skill off.
const GuidanceAdminDisabled = "This skill has been disabled by your organization admin."

// Status is the derived, per-user classification of a skill.
type Status struct {
	Status      State    `json:"status"`
	Limitations []string `json:"limitations"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Classify computes how a skill should be shown to a user. Admins are not
// subject to the org disabled list so they can still manage the skill.
// Classify is pure: identical inputs always produce identical output.
func Classify(s *Skill, eff access.EffectiveAccess, disabled map[string]bool, isAdmin bool) Status {
	if disabled[s.Slug] && !isAdmin {
		return disabledStatus()
	}
	return classify(s.Requirements, eff, false)
}

// ClassifyForExecution is Classify without the admin bypass. Use it before
// rendering or running a skill.
func ClassifyForExecution(s *Skill, eff access.EffectiveAccess, disabled map[string]bool) Status {
	if disabled[s.Slug] {
		return disabledStatus()
	}
	return classify(s.Requirements, eff, false)
}

// ClassifyIndividual classifies a skill for a user outside any organization.
// There is no disabled list or admin; blocked categories come from the
// individual block-list and the guidance says so.
func ClassifyIndividual(s *Skill, eff access.EffectiveAccess) Status {
	return classify(s.Requirements, eff, true)
}

// Visible reports whether a classified skill belongs in a listing.
// Disabled skills are hidden from everyone but admins.
func Visible(st Status, isAdmin bool) bool {
	return st.Status != StateDisabled || isAdmin
}

func disabledStatus() Status {
	return Status{
		Status:      StateDisabled,
		Limitations: []string{},
		Guidance:    GuidanceAdminDisabled,
	}
}

func classify(reqs access.Requirements, eff access.EffectiveAccess, individual bool) Status {
	st := Status{Status: StateAvailable, Limitations: []string{}}
	if len(reqs) == 0 {
		return st
	}

	var connect, upgrade, blocked []string
	for _, c := range reqs.Sorted() {
		need := reqs[c]
		have := eff.Get(c)
		if have.Satisfies(need) {
			continue
		}
		switch have {
		case access.LevelReadOnly:
			st.Limitations = append(st.Limitations, fmt.Sprintf("Requires full %s access", c.Label()))
			upgrade = append(upgrade, c.Label())
		case access.LevelDisabled:
			st.Limitations = append(st.Limitations, fmt.Sprintf("Requires %s access", c.Label()))
			blocked = append(blocked, c.Label())
		default:
			st.Limitations = append(st.Limitations, fmt.Sprintf("Requires %s access", c.Label()))
			connect = append(connect, c.Label())
		}
	}
	if len(st.Limitations) == 0 {
		return st
	}

	// Missing every requirement still yields limited: the skill is shown
	// dimmed rather than hidden.
	st.Status = StateLimited
	st.Guidance = guidance(connect, upgrade, blocked, individual)
	return st
}

func guidance(connect, upgrade, blocked []string, individual bool) string {
	var parts []string
	if len(connect) > 0 {
		parts = append(parts, fmt.Sprintf("Connect %s in Integrations to use this skill.", joinLabels(connect)))
	}
	if len(upgrade) > 0 {
		parts = append(parts, fmt.Sprintf("Reconnect %s with read-write access.", joinLabels(upgrade)))
	}
	switch {
	case len(blocked) > 0 && individual:
		parts = append(parts, fmt.Sprintf("%s access is only available to organization members.", capitalize(joinLabels(blocked))))
	case len(blocked) > 0:
		parts = append(parts, fmt.Sprintf("%s access is not available for your account; ask your organization admin.", capitalize(joinLabels(blocked))))
	}
	return strings.Join(parts, " ")
}

func joinLabels(labels []string) string {
	switch len(labels) {
	case 1:
		return labels[0]
	case 2:
		return labels[0] + " and " + labels[1]
	}
	return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
