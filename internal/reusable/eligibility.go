// Package reusable turns inline page blocks into shareable documents that
// pages reference instead of embedding.
package reusable

import "pageblocks/api/internal/schema"

// IsPromotable reports whether a value of type t, found depth levels below the
// document root, may be turned into a shareable document.
func IsPromotable(t *schema.Type, depth int) bool {
	if t == nil || depth <= 0 {
		return false
	}
	if t.Name == schema.ShareableType {
		return false
	}
	if !t.IsObject() {
		return false
	}
	return t.Options.Reusable
}

// IsPromoted reports whether value already stands in for a shareable document,
// either as a reference or as the shareable type itself.
func IsPromoted(value map[string]any) bool {
	typ, _ := value["_type"].(string)
	if typ == schema.ShareableType {
		return true
	}
	if typ == schema.ReferenceType {
		ref, _ := value["_ref"].(string)
		return ref != ""
	}
	return false
}
