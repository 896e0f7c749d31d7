package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DraftPrefix marks the unpublished variant of a document sharing the same logical id.
const DraftPrefix = "drafts."

var (
	ErrNotFound         = errors.New("document not found")
	ErrConflict         = errors.New("document already exists")
	ErrRevisionMismatch = errors.New("document revision mismatch")
	ErrMissingID        = errors.New("document id is required")
	ErrMissingType      = errors.New("document type is required")
)

// Document is a schemaless JSON object. System fields are prefixed with an underscore.
type Document map[string]any

func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

func (d Document) Type() string {
	typ, _ := d["_type"].(string)
	return typ
}

func (d Document) Rev() string {
	rev, _ := d["_rev"].(string)
	return rev
}

func (d Document) Title() string {
	title, _ := d["title"].(string)
	return title
}

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return DeepCopy(map[string]any(d)).(map[string]any)
}

// DeepCopy copies JSON-shaped values so the copy shares no maps or slices with the input.
func DeepCopy(value any) any {
	switch v := value.(type) {
	case Document:
		return Document(DeepCopy(map[string]any(v)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = DeepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = DeepCopy(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}

// Normalize round-trips a value through JSON so typed structs become plain maps.
func Normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func PublishedID(id string) string {
	return strings.TrimPrefix(id, DraftPrefix)
}

func DraftID(id string) string {
	return DraftPrefix + PublishedID(id)
}

func IsDraft(id string) bool {
	return strings.HasPrefix(id, DraftPrefix)
}

// References returns the distinct targets of every {_ref: ...} value nested in the document.
func References(doc Document) []string {
	seen := map[string]struct{}{}
	var out []string
	var walk func(value any)
	walk = func(value any) {
		switch v := value.(type) {
		case map[string]any:
			if ref, ok := v["_ref"].(string); ok && ref != "" {
				if _, dup := seen[ref]; !dup {
					seen[ref] = struct{}{}
					out = append(out, ref)
				}
			}
			for _, item := range v {
				walk(item)
			}
		case Document:
			walk(map[string]any(v))
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(doc)
	return out
}

func revision(doc Document) string {
	body := make(map[string]any, len(doc))
	for key, value := range doc {
		if key == "_rev" {
			continue
		}
		body[key] = value
	}
	raw, _ := json.Marshal(body)
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:12])
}

func stamp(doc Document, createdAt, now time.Time) {
	doc["_createdAt"] = createdAt.UTC().Format(time.RFC3339Nano)
	doc["_updatedAt"] = now.UTC().Format(time.RFC3339Nano)
	doc["_rev"] = revision(doc)
}

func createdAt(doc Document, fallback time.Time) time.Time {
	raw, _ := doc["_createdAt"].(string)
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed
	}
	return fallback
}
