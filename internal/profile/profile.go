// Package profile assembles the per-request bundle of live credentials a
// user can supply to a skill. A Profile is built fresh for each request and
// must never be persisted, cached or logged with its secrets.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/nidhogg/skillgate/internal/access"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Credential is what a skill needs to call one provider.
type Credential struct {
	Provider    string       `json:"provider"`
	Token       string       `json:"-"`
	BaseURL     string       `json:"base_url,omitempty"`
	AccessLevel access.Level `json:"access_level"`
}

// LLMCredential adds the resolved model to a Credential.
type LLMCredential struct {
	Credential
	Model string `json:"model"`
}

// Profile holds one credential per category the user can currently use.
type Profile struct {
	UserID   string         `json:"user_id"`
	ATS      *Credential    `json:"ats,omitempty"`
	Email    *Credential    `json:"email,omitempty"`
	Calendar *Credential    `json:"calendar,omitempty"`
	Database *Credential    `json:"database,omitempty"`
	LLM      *LLMCredential `json:"llm,omitempty"`
}

// Credential returns the credential for c, or nil if absent.
func (p *Profile) Credential(c access.Category) *Credential {
	switch c {
	case access.CategoryATS:
		return p.ATS
	case access.CategoryEmail:
		return p.Email
	case access.CategoryCalendar:
		return p.Calendar
	case access.CategoryDatabase:
		return p.Database
	case access.CategoryLLM:
		if p.LLM == nil {
			return nil
		}
		return &p.LLM.Credential
	}
	return nil
}

func (p *Profile) set(c access.Category, cred *Credential) {
	switch c {
	case access.CategoryATS:
		p.ATS = cred
	case access.CategoryEmail:
		p.Email = cred
	case access.CategoryCalendar:
		p.Calendar = cred
	case access.CategoryDatabase:
		p.Database = cred
	}
}

// Categories returns the categories present in the profile.
func (p *Profile) Categories() []access.Category {
	var out []access.Category
	for _, c := range access.Categories {
		if p.Credential(c) != nil {
			out = append(out, c)
		}
	}
	return out
}

// Values returns the placeholder vocabulary for instruction rendering.
// Absent categories contribute no keys; a present category always sets all
// of its keys, an unset base URL included.
func (p *Profile) Values() map[string]string {
	v := map[string]string{"USER_ID": p.UserID}
	if c := p.ATS; c != nil {
		v["ATS_TOKEN"] = c.Token
		v["ATS_PROVIDER"] = c.Provider
		v["ATS_BASE_URL"] = c.BaseURL
	}
	if c := p.Email; c != nil {
		v["EMAIL_TOKEN"] = c.Token
		v["EMAIL_PROVIDER"] = c.Provider
	}
	if c := p.Calendar; c != nil {
		v["CALENDAR_TOKEN"] = c.Token
		v["CALENDAR_PROVIDER"] = c.Provider
	}
	if c := p.Database; c != nil {
		v["DATABASE_TOKEN"] = c.Token
		v["DATABASE_PROVIDER"] = c.Provider
		v["DATABASE_BASE_URL"] = c.BaseURL
		v["SHEETS_TOKEN"] = c.Token
	}
	if c := p.LLM; c != nil {
		v["LLM_API_KEY"] = c.Token
		v["LLM_PROVIDER"] = c.Provider
		v["LLM_MODEL"] = c.Model
	}
	return v
}

// String never includes tokens.
func (p *Profile) String() string {
	return fmt.Sprintf("Profile{user=%s categories=%v}", p.UserID, p.Categories())
}

// GoString keeps %#v from dumping tokens.
func (p *Profile) GoString() string {
	return p.String()
}

// MarshalJSON emits the profile shape with tokens redacted.
func (c Credential) MarshalJSON() ([]byte, error) {
	type plain Credential
	return json.Marshal(struct {
		plain
		Token string `json:"token"`
	}{plain: plain(c), Token: redactedIfSet(c.Token)})
}

// MarshalJSON keeps the model alongside the redacted credential.
func (c LLMCredential) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Provider    string       `json:"provider"`
		Token       string       `json:"token"`
		BaseURL     string       `json:"base_url,omitempty"`
		AccessLevel access.Level `json:"access_level"`
		Model       string       `json:"model"`
	}{c.Provider, redactedIfSet(c.Token), c.BaseURL, c.AccessLevel, c.Model})
}

// MarshalLogObject implements zapcore.ObjectMarshaler without secrets.
func (p *Profile) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("user", p.UserID)
	for _, c := range p.Categories() {
		cred := p.Credential(c)
		enc.AddString(string(c), cred.Provider+"/"+cred.AccessLevel.String())
	}
	if p.LLM != nil {
		enc.AddString("llm_model", p.LLM.Model)
	}
	return nil
}

func redactedIfSet(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
