package profile

import "github.com/nidhogg/skillgate/internal/access"

// Check is the outcome of matching requirements against a profile.
type Check struct {
	Satisfied bool              `json:"satisfied"`
	Missing   []access.Category `json:"missing"`
}

// CheckRequirements reports which required categories the profile cannot
// serve at the required level. Run it before rendering.
func CheckRequirements(reqs access.Requirements, p *Profile) Check {
	missing := []access.Category{}
	for _, c := range reqs.Sorted() {
		cred := p.Credential(c)
		if cred == nil || !cred.AccessLevel.Satisfies(reqs[c]) {
			missing = append(missing, c)
		}
	}
	return Check{Satisfied: len(missing) == 0, Missing: missing}
}
