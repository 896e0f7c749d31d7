package schema

import (
	"fmt"
	"slices"
	"strings"
)

type ValidationError struct {
	Type     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document of type %s is invalid: %s", e.Type, strings.Join(e.Problems, "; "))
}

// Validate checks a document body against the rules declared on its type.
// Only required fields, array cardinality and array member types are checked.
func (r *Registry) Validate(doc map[string]any) error {
	typeName, _ := doc["_type"].(string)
	t, err := r.MustLookup(typeName)
	if err != nil {
		return err
	}

	var problems []string
	for _, field := range t.Fields {
		value, present := doc[field.Name]
		if field.Validation.Required && (!present || isEmpty(value)) {
			problems = append(problems, fmt.Sprintf("%s is required", field.Name))
			continue
		}
		if field.Type != KindArray || !present || value == nil {
			continue
		}
		items, ok := value.([]any)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s must be an array", field.Name))
			continue
		}
		if min := field.Validation.Min; min != nil && len(items) < *min {
			problems = append(problems, fmt.Sprintf("%s must have at least %d item(s)", field.Name, *min))
		}
		if max := field.Validation.Max; max != nil && len(items) > *max {
			problems = append(problems, fmt.Sprintf("%s must have at most %d item(s)", field.Name, *max))
		}
		if len(field.Of) == 0 {
			continue
		}
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			itemType, _ := obj["_type"].(string)
			if !slices.Contains(field.Of, itemType) {
				problems = append(problems, fmt.Sprintf("%s[%d] has type %q, expected one of %s", field.Name, i, itemType, strings.Join(field.Of, ", ")))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Type: typeName, Problems: problems}
	}
	return nil
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	}
	return false
}
