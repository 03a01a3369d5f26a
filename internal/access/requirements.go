package access

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Requirements maps each category a skill needs to the minimum level it needs.
type Requirements map[Category]Level

// ParseRequirements decodes the stored JSON form, e.g. {"ats":"read-only"}.
// Keys go through ParseCategory so the sheets alias lands on database.
// When two keys collapse onto one category the stricter level is kept.
func ParseRequirements(raw []byte) (Requirements, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Requirements{}, nil
	}

	var loose map[string]string
	if err := json.Unmarshal(raw, &loose); err != nil {
		return Requirements{}, fmt.Errorf("decode requirements: %w", err)
	}

	reqs := make(Requirements, len(loose))
	for key, val := range loose {
		c, err := ParseCategory(key)
		if err != nil {
			return Requirements{}, fmt.Errorf("requirement %q: %w", key, err)
		}
		l, err := ParseLevel(val)
		if err != nil {
			return Requirements{}, fmt.Errorf("requirement %q: %w", key, err)
		}
		if l != LevelReadOnly && l != LevelReadWrite {
			return Requirements{}, fmt.Errorf("requirement %q: level must be read-only or read-write, got %s", key, l)
		}
		reqs[c] = Max(reqs[c], l)
	}
	return reqs, nil
}

// MarshalJSON writes the canonical stored form.
func (r Requirements) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r))
	for c, l := range r {
		out[string(c)] = l.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler via ParseRequirements.
func (r *Requirements) UnmarshalJSON(b []byte) error {
	parsed, err := ParseRequirements(b)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Sorted returns the required categories in display order.
func (r Requirements) Sorted() []Category {
	out := make([]Category, 0, len(r))
	for c := range r {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return categoryIndex(out[i]) < categoryIndex(out[j]) })
	return out
}

func categoryIndex(c Category) int {
	for i, known := range Categories {
		if known == c {
			return i
		}
	}
	return len(Categories)
}
