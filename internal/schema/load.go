package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultSchema []byte

type file struct {
	Types []Type `yaml:"types"`
}

// Parse decodes a YAML schema file holding a top-level "types" list.
func Parse(data []byte) ([]Type, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return f.Types, nil
}

// Default returns the built-in page builder schema.
func Default() *Registry {
	types, err := Parse(defaultSchema)
	if err != nil {
		panic(err)
	}
	registry, err := NewRegistry(types...)
	if err != nil {
		panic(err)
	}
	return registry
}

// Load builds a registry from every file matching pattern, e.g. "schemas/**/*.yaml".
// An empty pattern yields the built-in schema.
func Load(pattern string) (*Registry, error) {
	if strings.TrimSpace(pattern) == "" {
		return Default(), nil
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob schema files: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no schema files match %q", pattern)
	}
	sort.Strings(matches)

	var all []Type
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", path, err)
		}
		types, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, types...)
	}
	return NewRegistry(all...)
}
