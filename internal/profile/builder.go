package profile

import (
	"context"
	"fmt"
	"sort"

	"github.com/nidhogg/skillgate/internal/access"
	"go.uber.org/zap"
)

// StoredCredential is a connected integration together with its decrypted
// token, as returned by the credential store.
type StoredCredential struct {
	access.IntegrationRecord
	Token   string
	BaseURL string
}

// ModelChoice is a provider/model pair from org or user settings.
type ModelChoice struct {
	Provider string
	Model    string
}

// CredentialSource reads live credentials and model preferences.
type CredentialSource interface {
	ListCredentials(ctx context.Context, userID string) ([]StoredCredential, error)
	OrgModelDefault(ctx context.Context, orgID string) (ModelChoice, bool, error)
	UserModelPreference(ctx context.Context, userID string) (ModelChoice, bool, error)
}

// Fallback is used when neither org nor user picked a model.
var Fallback = ModelChoice{Provider: "anthropic", Model: "claude-sonnet-4-5"}

// providerModels is the per-provider default when the chosen model belongs
// to a provider the user has no key for.
var providerModels = map[string]string{
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-4o",
	"google":    "gemini-2.5-pro",
}

// Builder constructs capability profiles.
type Builder struct {
	resolver *access.Resolver
	source   CredentialSource
	logger   *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(resolver *access.Resolver, source CredentialSource, logger *zap.Logger) *Builder {
	return &Builder{resolver: resolver, source: source, logger: logger}
}

// Build returns everything the user can currently supply, not filtered by
// any particular skill. Categories below read-only are left out.
func (b *Builder) Build(ctx context.Context, scope *access.Scope, userID, orgID string) (*Profile, error) {
	eff, err := b.resolver.Resolve(ctx, scope, userID, orgID)
	if err != nil {
		return nil, err
	}

	creds, err := b.source.ListCredentials(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list credentials: %w", access.ErrStoreUnavailable, err)
	}
	byCategory := b.group(creds)

	p := &Profile{UserID: userID}
	for _, c := range access.Categories {
		level := eff.Get(c)
		if !level.Usable() {
			continue
		}
		candidates := byCategory[c]
		if len(candidates) == 0 {
			continue
		}
		if c == access.CategoryLLM {
			llm, err := b.llm(ctx, userID, orgID, candidates, level)
			if err != nil {
				return nil, err
			}
			p.LLM = llm
			continue
		}
		best := candidates[0]
		p.set(c, &Credential{
			Provider:    best.cred.Provider,
			Token:       best.cred.Token,
			BaseURL:     best.cred.BaseURL,
			AccessLevel: access.Min(level, best.level),
		})
	}

	b.logger.Debug("capability profile built", zap.Object("profile", p))
	return p, nil
}

type candidate struct {
	cred  StoredCredential
	level access.Level
}

// group buckets usable credentials by category, best first: highest level,
// then provider name for a stable choice.
func (b *Builder) group(creds []StoredCredential) map[access.Category][]candidate {
	out := make(map[access.Category][]candidate)
	for _, cred := range creds {
		if cred.Status != access.StatusConnected || cred.Token == "" {
			continue
		}
		c, err := access.ParseCategory(cred.Category)
		if err != nil {
			continue
		}
		l, err := cred.Level()
		if err != nil || !l.Usable() {
			continue
		}
		out[c] = append(out[c], candidate{cred: cred, level: l})
	}
	for _, list := range out {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].level != list[j].level {
				return list[i].level > list[j].level
			}
			return list[i].cred.Provider < list[j].cred.Provider
		})
	}
	return out
}

// llm picks the model by precedence org default, user preference, fallback,
// then selects the connected key matching that model's provider among the
// keys at the best effective level. A weaker key of the chosen provider never
// wins over a more capable one, which then runs its provider's default model.
func (b *Builder) llm(ctx context.Context, userID, orgID string, candidates []candidate, level access.Level) (*LLMCredential, error) {
	choice, err := b.modelChoice(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	best := access.Min(level, candidates[0].level)
	picked := candidates[0]
	for _, cand := range candidates {
		if access.Min(level, cand.level) != best {
			break
		}
		if cand.cred.Provider == choice.Provider {
			picked = cand
			break
		}
	}

	model := choice.Model
	if picked.cred.Provider != choice.Provider {
		model = providerModels[picked.cred.Provider]
		if model == "" {
			model = choice.Model
		}
	}

	return &LLMCredential{
		Credential: Credential{
			Provider:    picked.cred.Provider,
			Token:       picked.cred.Token,
			BaseURL:     picked.cred.BaseURL,
			AccessLevel: access.Min(level, picked.level),
		},
		Model: model,
	}, nil
}

func (b *Builder) modelChoice(ctx context.Context, userID, orgID string) (ModelChoice, error) {
	if orgID != "" {
		choice, ok, err := b.source.OrgModelDefault(ctx, orgID)
		if err != nil {
			return ModelChoice{}, fmt.Errorf("%w: org model default: %w", access.ErrStoreUnavailable, err)
		}
		if ok && choice.Model != "" {
			return choice, nil
		}
	}
	choice, ok, err := b.source.UserModelPreference(ctx, userID)
	if err != nil {
		return ModelChoice{}, fmt.Errorf("%w: user model preference: %w", access.ErrStoreUnavailable, err)
	}
	if ok && choice.Model != "" {
		return choice, nil
	}
	return Fallback, nil
}
