package access

import "fmt"

// Level is an access level with a total order:
// disabled < none < read-only < read-write.
// Disabled only ever originates from org policy or the individual block-list.
type Level int

const (
	LevelDisabled  Level = -1
	LevelNone      Level = 0
	LevelReadOnly  Level = 1
	LevelReadWrite Level = 2
)

// ParseLevel converts the stored text form of a level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "disabled":
		return LevelDisabled, nil
	case "none":
		return LevelNone, nil
	case "read-only", "read_only", "read":
		return LevelReadOnly, nil
	case "read-write", "read_write", "write":
		return LevelReadWrite, nil
	}
	return LevelNone, fmt.Errorf("unknown access level %q", s)
}

func (l Level) String() string {
	switch l {
	case LevelDisabled:
		return "disabled"
	case LevelReadOnly:
		return "read-only"
	case LevelReadWrite:
		return "read-write"
	default:
		return "none"
	}
}

// Usable reports whether the level grants at least read access.
func (l Level) Usable() bool {
	return l >= LevelReadOnly
}

// Satisfies reports whether l meets the required level.
func (l Level) Satisfies(required Level) bool {
	if l == LevelReadWrite {
		return true
	}
	return required == LevelReadOnly && l >= LevelReadOnly
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Min returns the lower of two levels.
func Min(a, b Level) Level {
	if a < b {
		return a
	}
	return b
}

// Max returns the higher of two levels.
func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// Merge combines a policy ceiling with the user's connection level.
// A disabled ceiling wins outright; otherwise the lower level applies.
func Merge(ceiling, connection Level) Level {
	if ceiling == LevelDisabled {
		return LevelDisabled
	}
	return Min(ceiling, connection)
}
