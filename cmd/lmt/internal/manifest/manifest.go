// Package manifest loads component declarations from a YAML file and
// builds the registry the compiler validates invocations against.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/livefir/livemarkup"
)

// Manifest declares the components available to a template.
type Manifest struct {
	Components []Component `yaml:"components"`
}

// Component declares one component: its template file plus attribute and
// slot metadata.
type Component struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	Attrs []Attr `yaml:"attrs,omitempty"`
	Slots []Slot `yaml:"slots,omitempty"`
}

// Attr declares one attribute.
type Attr struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type,omitempty"`
	Required bool   `yaml:"required,omitempty"`
}

// Slot declares one named slot.
type Slot struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required,omitempty"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	seen := map[string]bool{}
	for i, c := range m.Components {
		if c.Name == "" {
			return fmt.Errorf("component %d has no name", i)
		}
		if c.File == "" {
			return fmt.Errorf("component %q has no template file", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("component %q declared twice", c.Name)
		}
		seen[c.Name] = true
		for _, a := range c.Attrs {
			if _, err := attrType(a.Type); err != nil {
				return fmt.Errorf("component %q attribute %q: %w", c.Name, a.Name, err)
			}
		}
	}
	return nil
}

// BuildRegistry compiles every declared component template (relative to
// the manifest's directory) and registers it. Component templates compile
// against the same registry, so declaration order matters for validation
// but not for rendering.
func BuildRegistry(path string, m *Manifest) (*livemarkup.Registry, []livemarkup.Warning, error) {
	reg := livemarkup.NewRegistry()
	dir := filepath.Dir(path)
	var warnings []livemarkup.Warning

	for _, c := range m.Components {
		source, err := os.ReadFile(filepath.Join(dir, c.File))
		if err != nil {
			return nil, nil, fmt.Errorf("component %q: %w", c.Name, err)
		}
		tmpl, err := livemarkup.Compile(c.Name, string(source), livemarkup.WithComponents(reg))
		if err != nil {
			return nil, nil, fmt.Errorf("component %q: %w", c.Name, err)
		}
		warnings = append(warnings, tmpl.Warnings()...)

		b := livemarkup.NewSpec(c.Name).Template(tmpl)
		for _, a := range c.Attrs {
			typ, _ := attrType(a.Type)
			b.Attr(a.Name, typ, a.Required)
		}
		for _, s := range c.Slots {
			b.Slot(s.Name, s.Required)
		}
		spec, specWarnings := b.Build()
		warnings = append(warnings, specWarnings...)
		if err := reg.Register(spec); err != nil {
			return nil, nil, err
		}
	}
	return reg, warnings, nil
}

func attrType(name string) (livemarkup.AttrType, error) {
	switch name {
	case "", "any":
		return livemarkup.AttrAny, nil
	case "string":
		return livemarkup.AttrString, nil
	case "atom":
		return livemarkup.AttrAtom, nil
	case "boolean", "bool":
		return livemarkup.AttrBool, nil
	case "integer", "int":
		return livemarkup.AttrInt, nil
	case "float":
		return livemarkup.AttrFloat, nil
	case "list":
		return livemarkup.AttrList, nil
	case "map":
		return livemarkup.AttrMap, nil
	case "global":
		return livemarkup.AttrGlobal, nil
	}
	return livemarkup.AttrAny, fmt.Errorf("unknown attribute type %q", name)
}
