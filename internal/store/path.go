package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrPathNotFound = errors.New("path not found")
)

type segmentKind int

const (
	segmentField segmentKind = iota
	segmentKey
	segmentIndex
)

type segment struct {
	kind  segmentKind
	field string
	key   string
	index int
}

// Path addresses a value inside a document, e.g. `content[_key=="a"].heading` or `content[0]`.
type Path []segment

// KeyedPath addresses the array item of field whose _key equals key.
func KeyedPath(field, key string) string {
	return fmt.Sprintf("%s[_key==%q]", field, key)
}

func ParsePath(raw string) (Path, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	var path Path
	for len(s) > 0 {
		switch s[0] {
		case '.':
			if len(path) == 0 {
				return nil, fmt.Errorf("%w: %q starts with a dot", ErrInvalidPath, raw)
			}
			s = s[1:]
			if s == "" || s[0] == '.' || s[0] == '[' {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPath, raw)
			}
		case '[':
			if len(path) == 0 {
				return nil, fmt.Errorf("%w: %q starts with a selector", ErrInvalidPath, raw)
			}
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated selector in %q", ErrInvalidPath, raw)
			}
			seg, err := parseSelector(s[1:end])
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPath, raw, err)
			}
			path = append(path, seg)
			s = s[end+1:]
		default:
			end := strings.IndexAny(s, ".[")
			if end < 0 {
				end = len(s)
			}
			name := s[:end]
			if name == "" {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPath, raw)
			}
			path = append(path, segment{kind: segmentField, field: name})
			s = s[end:]
		}
	}
	return path, nil
}

func parseSelector(sel string) (segment, error) {
	sel = strings.TrimSpace(sel)
	if rest, ok := strings.CutPrefix(sel, "_key"); ok {
		rest = strings.TrimSpace(rest)
		rest, ok = strings.CutPrefix(rest, "==")
		if !ok {
			return segment{}, errors.New("expected == after _key")
		}
		key, err := strconv.Unquote(strings.TrimSpace(rest))
		if err != nil {
			key, err = unquoteSingle(strings.TrimSpace(rest))
			if err != nil {
				return segment{}, fmt.Errorf("bad key literal: %w", err)
			}
		}
		if key == "" {
			return segment{}, errors.New("empty key")
		}
		return segment{kind: segmentKey, key: key}, nil
	}
	index, err := strconv.Atoi(sel)
	if err != nil {
		return segment{}, fmt.Errorf("bad index %q", sel)
	}
	return segment{kind: segmentIndex, index: index}, nil
}

func unquoteSingle(s string) (string, error) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1], nil
	}
	return "", errors.New("not quoted")
}

func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch seg.kind {
		case segmentField:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.field)
		case segmentKey:
			fmt.Fprintf(&b, "[_key==%q]", seg.key)
		case segmentIndex:
			fmt.Fprintf(&b, "[%d]", seg.index)
		}
	}
	return b.String()
}

// Get returns the value at path.
func Get(doc map[string]any, raw string) (any, error) {
	path, err := ParsePath(raw)
	if err != nil {
		return nil, err
	}
	var current any = doc
	for _, seg := range path {
		next, ok := step(current, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, raw)
		}
		current = next
	}
	return current, nil
}

func step(current any, seg segment) (any, bool) {
	switch seg.kind {
	case segmentField:
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		value, ok := obj[seg.field]
		return value, ok
	case segmentKey:
		items, ok := current.([]any)
		if !ok {
			return nil, false
		}
		i := indexOfKey(items, seg.key)
		if i < 0 {
			return nil, false
		}
		return items[i], true
	default:
		items, ok := current.([]any)
		if !ok {
			return nil, false
		}
		i := seg.index
		if i < 0 {
			i += len(items)
		}
		if i < 0 || i >= len(items) {
			return nil, false
		}
		return items[i], true
	}
}

func asObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case Document:
		return map[string]any(v), true
	}
	return nil, false
}

func indexOfKey(items []any, key string) int {
	for i, item := range items {
		obj, ok := asObject(item)
		if !ok {
			continue
		}
		if k, _ := obj["_key"].(string); k == key {
			return i
		}
	}
	return -1
}

// setPath writes value at path, creating missing objects along field segments.
// A keyed final segment whose item is absent appends the value to the array.
// onlyIfMissing leaves an existing value untouched.
func setPath(doc map[string]any, path Path, value any, onlyIfMissing bool) error {
	if len(path) == 0 {
		return ErrInvalidPath
	}
	// paths always open with a field segment, so doc is updated in place
	if _, err := setIn(doc, path, value, onlyIfMissing); err != nil {
		return fmt.Errorf("%w: %s", err, path)
	}
	return nil
}

func setIn(current any, path Path, value any, onlyIfMissing bool) (any, error) {
	seg := path[0]
	last := len(path) == 1

	switch seg.kind {
	case segmentField:
		obj, ok := asObject(current)
		if current == nil {
			obj, ok = map[string]any{}, true
		}
		if !ok {
			return nil, ErrPathNotFound
		}
		existing, present := obj[seg.field]
		if last {
			if !(onlyIfMissing && present) {
				obj[seg.field] = value
			}
			return obj, nil
		}
		child, err := setIn(existing, path[1:], value, onlyIfMissing)
		if err != nil {
			return nil, err
		}
		obj[seg.field] = child
		return obj, nil

	case segmentKey:
		items, ok := current.([]any)
		if current == nil {
			items, ok = []any{}, true
		}
		if !ok {
			return nil, ErrPathNotFound
		}
		i := indexOfKey(items, seg.key)
		if i < 0 {
			if !last {
				return nil, ErrPathNotFound
			}
			return append(items, value), nil
		}
		if last {
			if !onlyIfMissing {
				items[i] = value
			}
			return items, nil
		}
		child, err := setIn(items[i], path[1:], value, onlyIfMissing)
		if err != nil {
			return nil, err
		}
		items[i] = child
		return items, nil

	default:
		items, ok := current.([]any)
		if !ok {
			return nil, ErrPathNotFound
		}
		i := seg.index
		if i < 0 {
			i += len(items)
		}
		if i < 0 || i >= len(items) {
			return nil, ErrPathNotFound
		}
		if last {
			if !onlyIfMissing {
				items[i] = value
			}
			return items, nil
		}
		child, err := setIn(items[i], path[1:], value, onlyIfMissing)
		if err != nil {
			return nil, err
		}
		items[i] = child
		return items, nil
	}
}

// unsetPath removes the value at path. Missing paths are not an error.
func unsetPath(doc map[string]any, path Path) {
	if len(path) == 0 {
		return
	}
	parentPath, last := path[:len(path)-1], path[len(path)-1]
	var parent any = doc
	for _, seg := range parentPath {
		next, ok := step(parent, seg)
		if !ok {
			return
		}
		parent = next
	}

	switch last.kind {
	case segmentField:
		if obj, ok := asObject(parent); ok {
			delete(obj, last.field)
		}
	default:
		items, ok := parent.([]any)
		if !ok {
			return
		}
		i := last.index
		if last.kind == segmentKey {
			i = indexOfKey(items, last.key)
		} else if i < 0 {
			i += len(items)
		}
		if i < 0 || i >= len(items) {
			return
		}
		remaining := append(items[:i:i], items[i+1:]...)
		replaceInParent(doc, parentPath, remaining)
	}
}

func replaceInParent(doc map[string]any, path Path, value any) {
	_ = setPath(doc, path, value, false)
}
