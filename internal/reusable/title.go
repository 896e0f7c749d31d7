package reusable

import (
	"strings"

	"pageblocks/api/internal/schema"
)

// DefaultTitle labels a shareable document when its block carries no title.
const DefaultTitle = "New Reusable Block"

// TitleFunc derives the label of a new shareable document from the promoted value.
type TitleFunc func(value map[string]any) string

// DeriveTitle uses a plain string title, then a rich-text title flattened to
// plain text, then DefaultTitle.
func DeriveTitle(value map[string]any) string {
	if title := ownTitle(value); title != "" {
		return title
	}
	return DefaultTitle
}

// TitleFromSchema behaves like DeriveTitle but also tries the field the type
// is previewed by, e.g. a text block's heading.
func TitleFromSchema(registry *schema.Registry) TitleFunc {
	return func(value map[string]any) string {
		if title := ownTitle(value); title != "" {
			return title
		}
		typeName, _ := value["_type"].(string)
		if t, ok := registry.Lookup(typeName); ok && t.Preview.Title != "" && t.Preview.Title != "title" {
			if title := textOf(value[t.Preview.Title]); title != "" {
				return title
			}
		}
		return DefaultTitle
	}
}

func ownTitle(value map[string]any) string {
	return textOf(value["title"])
}

func textOf(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any, map[string]any:
		return strings.TrimSpace(PlainText(v))
	}
	return ""
}

// PlainText flattens portable text blocks: span text is concatenated within a
// block and blocks are separated by a blank line. Non-text blocks are skipped.
func PlainText(value any) string {
	var blocks []any
	switch v := value.(type) {
	case []any:
		blocks = v
	case map[string]any:
		blocks = []any{v}
	default:
		return ""
	}

	parts := make([]string, 0, len(blocks))
	for _, item := range blocks {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		children, ok := block["children"].([]any)
		if !ok {
			continue
		}
		var b strings.Builder
		for _, child := range children {
			span, ok := child.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := span["text"].(string); ok {
				b.WriteString(text)
			}
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}
