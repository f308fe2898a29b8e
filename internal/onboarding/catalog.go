// Package onboarding runs the mandatory profile-completion wizard.
package onboarding

import (
	_ "embed"
	"fmt"

	"trazio/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var catalogYAML []byte

// Field is one input of a step. Rules use validator tag syntax.
type Field struct {
	Name    string   `yaml:"name" json:"name"`
	Label   string   `yaml:"label" json:"label"`
	Rules   string   `yaml:"rules" json:"rules,omitempty"`
	Options []string `yaml:"options" json:"options,omitempty"`
	// Source names a backend list offered as options, e.g. "subjects".
	Source string `yaml:"source" json:"source,omitempty"`
}

// Step is one page of the wizard.
type Step struct {
	ID     string  `yaml:"id" json:"id"`
	Title  string  `yaml:"title" json:"title"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Catalog holds the step sequence of each role.
type Catalog struct {
	RoleStep Step   `yaml:"role_step"`
	Student  []Step `yaml:"student"`
	Teacher  []Step `yaml:"teacher"`
}

// LoadCatalog parses the embedded step catalogue.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses and checks a catalogue document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse onboarding catalog: %w", err)
	}
	if c.RoleStep.ID == "" || len(c.Student) == 0 || len(c.Teacher) == 0 {
		return nil, fmt.Errorf("onboarding catalog needs a role step and steps for both roles")
	}
	for _, steps := range [][]Step{{c.RoleStep}, c.Student, c.Teacher} {
		for _, s := range steps {
			for _, f := range s.Fields {
				if _, ok := draftFields[f.Name]; !ok {
					return nil, fmt.Errorf("onboarding step %q: unknown field %q", s.ID, f.Name)
				}
			}
		}
	}
	return &c, nil
}

// Steps returns the full sequence for role, role step included. Until a role
// is chosen the student sequence is assumed.
func (c *Catalog) Steps(role models.Role) []Step {
	rest := c.Student
	if role == models.RoleTeacher {
		rest = c.Teacher
	}
	steps := make([]Step, 0, len(rest)+1)
	steps = append(steps, c.RoleStep)
	return append(steps, rest...)
}
