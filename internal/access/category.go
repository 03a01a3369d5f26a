package access

import "fmt"

// Category is a capability domain a skill can depend on.
type Category string

const (
	CategoryATS      Category = "ats"
	CategoryEmail    Category = "email"
	CategoryCalendar Category = "calendar"
	CategoryDatabase Category = "database"
	CategoryLLM      Category = "llm"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryATS,
	CategoryEmail,
	CategoryCalendar,
	CategoryDatabase,
	CategoryLLM,
}

// aliases maps legacy requirement keys onto categories.
var aliases = map[string]Category{
	"sheets":   CategoryDatabase,
	"airtable": CategoryDatabase,
}

// ParseCategory converts a stored key into a Category, applying aliases.
func ParseCategory(s string) (Category, error) {
	if c, ok := aliases[s]; ok {
		return c, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label is the human-readable name used in limitation messages.
func (c Category) Label() string {
	switch c {
	case CategoryATS:
		return "ATS"
	case CategoryDatabase:
		return "database"
	case CategoryLLM:
		return "AI model"
	default:
		return string(c)
	}
}

// UnmarshalText lets Category be used as a JSON map key with alias support.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c), nil
}
