package skill

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nidhogg/skillgate/internal/access"
	"github.com/nidhogg/skillgate/internal/slug"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const definitionFile = "SKILL.md"

// LoadFromDir scans a directory for skill subdirectories, each holding a
// SKILL.md with YAML front matter (name, description, category, requires)
// followed by the instruction template. Loaded skills are global and enabled.
// If dir doesn't exist, returns an empty slice without error.
func LoadFromDir(dir string) ([]*Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading skill directory %s: %w", dir, err)
	}

	var skills []*Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		s, err := loadDefinition(filepath.Join(dir, entry.Name(), definitionFile))
		if err != nil {
			return nil, fmt.Errorf("loading skill %s: %w", entry.Name(), err)
		}
		if s != nil {
			skills = append(skills, s)
		}
	}

	return skills, nil
}

func loadDefinition(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", definitionFile, err)
	}
	return ParseDefinition(content)
}

// ParseDefinition parses the contents of a SKILL.md file.
func ParseDefinition(content []byte) (*Skill, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	pctx := parser.NewContext()
	var buf bytes.Buffer
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, fmt.Errorf("parse markdown: %w", err)
	}

	fm := meta.Get(pctx)
	if fm == nil {
		return nil, fmt.Errorf("missing front matter")
	}

	name, _ := fm["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("name is required in front matter")
	}
	description, _ := fm["description"].(string)
	category, _ := fm["category"].(string)

	reqs, err := requirementsFromMeta(fm["requires"])
	if err != nil {
		return nil, err
	}

	s := &Skill{
		Slug:         slug.Slugify(name),
		Name:         name,
		Description:  description,
		Category:     category,
		Requirements: reqs,
		Instructions: stripFrontMatter(string(content)),
		Visibility:   VisibilityOrganization,
		IsGlobal:     true,
		IsEnabled:    true,
		Source:       "seed",
	}
	if explicit, _ := fm["slug"].(string); explicit != "" {
		s.Slug = explicit
	}
	return s, nil
}

// requirementsFromMeta converts the YAML requires block, which the yaml
// decoder hands back with interface{} keys, into typed requirements.
func requirementsFromMeta(v interface{}) (access.Requirements, error) {
	flat := make(map[string]string)
	switch m := v.(type) {
	case nil:
		return access.Requirements{}, nil
	case map[interface{}]interface{}:
		for k, val := range m {
			flat[fmt.Sprint(k)] = fmt.Sprint(val)
		}
	case map[string]interface{}:
		for k, val := range m {
			flat[k] = fmt.Sprint(val)
		}
	default:
		return nil, fmt.Errorf("requires must be a mapping of category to access level")
	}

	raw, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("encode requires: %w", err)
	}
	reqs, err := access.ParseRequirements(raw)
	if err != nil {
		return nil, fmt.Errorf("requires: %w", err)
	}
	return reqs, nil
}

func stripFrontMatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return strings.TrimSpace(content)
	}
	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return strings.TrimSpace(content)
}
