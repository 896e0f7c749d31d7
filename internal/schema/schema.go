// Package schema holds the static type descriptors of the studio's content model.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ShareableType is the document type that wraps exactly one promoted block.
const ShareableType = "reusablePageBlock"

// ReferenceType is the value type written in place of a promoted block.
const ReferenceType = "reference"

const (
	KindDocument = "document"
	KindObject   = "object"
	KindArray    = "array"
)

var ErrUnknownType = errors.New("unknown schema type")

type Type struct {
	Name    string  `yaml:"name" json:"name"`
	Title   string  `yaml:"title" json:"title,omitempty"`
	Kind    string  `yaml:"type" json:"type"`
	Fields  []Field `yaml:"fields" json:"fields,omitempty"`
	Options Options `yaml:"options" json:"options"`
	Preview Preview `yaml:"preview" json:"preview"`
}

type Field struct {
	Name       string     `yaml:"name" json:"name"`
	Title      string     `yaml:"title" json:"title,omitempty"`
	Type       string     `yaml:"type" json:"type"`
	Of         []string   `yaml:"of" json:"of,omitempty"`
	To         []string   `yaml:"to" json:"to,omitempty"`
	Validation Validation `yaml:"validation" json:"validation"`
}

// Options carries per-type flags. Reusable is read once per type, never per value.
type Options struct {
	Reusable bool `yaml:"reusable" json:"reusable"`
}

// Preview names the field a type is labelled by in lists.
type Preview struct {
	Title string `yaml:"title" json:"title,omitempty"`
}

type Validation struct {
	Required bool `yaml:"required" json:"required,omitempty"`
	Min      *int `yaml:"min" json:"min,omitempty"`
	Max      *int `yaml:"max" json:"max,omitempty"`
}

func (t *Type) IsObject() bool {
	return t != nil && t.Kind == KindObject
}

func (t *Type) IsDocument() bool {
	return t != nil && t.Kind == KindDocument
}

func (t *Type) Field(name string) (Field, bool) {
	if t == nil {
		return Field{}, false
	}
	for _, field := range t.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// DisplayName turns a camel-cased type name into a label, e.g. "textBlock" becomes "Text Block".
func DisplayName(typeName string) string {
	name := strings.Replace(typeName, "PageBlock", "", 1)
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String()
	return strings.ToUpper(out[:1]) + out[1:]
}

type Registry struct {
	types map[string]*Type
}

func NewRegistry(types ...Type) (*Registry, error) {
	r := &Registry{types: make(map[string]*Type, len(types))}
	for i := range types {
		item := types[i]
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return nil, fmt.Errorf("schema type at position %d has no name", i)
		}
		if _, exists := r.types[item.Name]; exists {
			return nil, fmt.Errorf("duplicate schema type %q", item.Name)
		}
		if item.Kind == "" {
			item.Kind = KindObject
		}
		r.types[item.Name] = &item
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (*Type, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) MustLookup(name string) (*Type, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return t, nil
}

// Types returns all descriptors sorted by name.
func (r *Registry) Types() []*Type {
	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReusableTypes lists the names of the types that opted in to promotion.
func (r *Registry) ReusableTypes() []string {
	var names []string
	for _, t := range r.Types() {
		if t.IsObject() && t.Options.Reusable {
			names = append(names, t.Name)
		}
	}
	return names
}
