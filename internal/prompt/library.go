// Package prompt holds the named minutes templates a request can refer to by name.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is one named minutes format.
type Template struct {
	Name        string `yaml:"-" json:"name"`
	Description string `yaml:"description" json:"description"`
	Instruction string `yaml:"instruction" json:"instruction"`
}

type libraryFile struct {
	Vars      map[string]string    `yaml:"vars"`
	Templates map[string]*Template `yaml:"templates"`
}

// Library resolves a request's format template. Instructions are rendered once at
// load time, so a template referencing an undefined variable fails Load.
type Library struct {
	templates map[string]Template
}

// Load reads a YAML template file. An empty path yields an empty library.
//
//	vars:
//	  company: Acme
//	templates:
//	  standup:
//	    description: Daily standup
//	    instruction: Summarize {{company}}'s standup as yesterday, today and blockers.
func Load(path string) (*Library, error) {
	if path == "" {
		return &Library{templates: map[string]Template{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Library, error) {
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	lib := &Library{templates: make(map[string]Template, len(f.Templates))}
	var errs []error
	for name, t := range f.Templates {
		if t == nil || strings.TrimSpace(t.Instruction) == "" {
			errs = append(errs, fmt.Errorf("template %q: instruction is empty", name))
			continue
		}
		rendered, err := Render(t.Instruction, f.Vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("template %q: %w", name, err))
			continue
		}
		lib.templates[name] = Template{Name: name, Description: t.Description, Instruction: strings.TrimSpace(rendered)}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return lib, nil
}

// Resolve maps a format template to an instruction: a known name yields its
// instruction, any other non-blank text is used verbatim, blank yields "".
func (l *Library) Resolve(formatTemplate string) string {
	ft := strings.TrimSpace(formatTemplate)
	if ft == "" {
		return ""
	}
	if l != nil {
		if t, ok := l.templates[ft]; ok {
			return t.Instruction
		}
	}
	return formatTemplate
}

// List returns the templates sorted by name.
func (l *Library) List() []Template {
	if l == nil {
		return nil
	}
	out := make([]Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
