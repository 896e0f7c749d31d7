package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Operation string

const (
	OpCreate            Operation = "create"
	OpCreateIfNotExists Operation = "createIfNotExists"
	OpCreateOrReplace   Operation = "createOrReplace"
	OpPatch             Operation = "patch"
	OpDelete            Operation = "delete"
)

// Patch edits an existing document. Operations apply in the order
// setIfMissing, set, unset; paths within each group apply in sorted order.
type Patch struct {
	ID           string         `json:"id"`
	IfRevisionID string         `json:"ifRevisionID,omitempty"`
	SetIfMissing map[string]any `json:"setIfMissing,omitempty"`
	Set          map[string]any `json:"set,omitempty"`
	Unset        []string       `json:"unset,omitempty"`
}

func NewPatch(id string) *Patch {
	return &Patch{ID: id}
}

func (p *Patch) SetValue(path string, value any) *Patch {
	if p.Set == nil {
		p.Set = map[string]any{}
	}
	p.Set[path] = value
	return p
}

func (p *Patch) SetValueIfMissing(path string, value any) *Patch {
	if p.SetIfMissing == nil {
		p.SetIfMissing = map[string]any{}
	}
	p.SetIfMissing[path] = value
	return p
}

func (p *Patch) UnsetPath(path string) *Patch {
	p.Unset = append(p.Unset, path)
	return p
}

func (p *Patch) IfRevision(rev string) *Patch {
	p.IfRevisionID = rev
	return p
}

func (p *Patch) Empty() bool {
	return p == nil || (len(p.Set) == 0 && len(p.SetIfMissing) == 0 && len(p.Unset) == 0)
}

// Mutation is one operation inside a transaction. Exactly one of
// Document, Patch or DeleteID is populated depending on Kind.
type Mutation struct {
	Kind     Operation
	Document Document
	Patch    *Patch
	DeleteID string
}

func Create(doc Document) Mutation {
	return Mutation{Kind: OpCreate, Document: doc}
}

func CreateIfNotExists(doc Document) Mutation {
	return Mutation{Kind: OpCreateIfNotExists, Document: doc}
}

func CreateOrReplace(doc Document) Mutation {
	return Mutation{Kind: OpCreateOrReplace, Document: doc}
}

func PatchMutation(p *Patch) Mutation {
	return Mutation{Kind: OpPatch, Patch: p}
}

func Delete(id string) Mutation {
	return Mutation{Kind: OpDelete, DeleteID: id}
}

// TargetID returns the id of the document the mutation touches.
func (m Mutation) TargetID() string {
	switch m.Kind {
	case OpPatch:
		if m.Patch == nil {
			return ""
		}
		return m.Patch.ID
	case OpDelete:
		return m.DeleteID
	default:
		return m.Document.ID()
	}
}

// MarshalJSON renders the mutation in the wire shape {"<kind>": <payload>}.
func (m Mutation) MarshalJSON() ([]byte, error) {
	var payload any
	switch m.Kind {
	case OpPatch:
		payload = m.Patch
	case OpDelete:
		payload = map[string]string{"id": m.DeleteID}
	default:
		payload = m.Document
	}
	return json.Marshal(map[string]any{string(m.Kind): payload})
}

func (m *Mutation) UnmarshalJSON(data []byte) error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire) != 1 {
		return fmt.Errorf("mutation must have exactly one operation, got %d", len(wire))
	}
	for kind, raw := range wire {
		switch Operation(kind) {
		case OpCreate, OpCreateIfNotExists, OpCreateOrReplace:
			var doc Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("decode %s: %w", kind, err)
			}
			*m = Mutation{Kind: Operation(kind), Document: doc}
		case OpPatch:
			var p Patch
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("decode patch: %w", err)
			}
			*m = Mutation{Kind: OpPatch, Patch: &p}
		case OpDelete:
			var body struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("decode delete: %w", err)
			}
			*m = Mutation{Kind: OpDelete, DeleteID: body.ID}
		default:
			return fmt.Errorf("unknown mutation %q", kind)
		}
	}
	return nil
}

// Transaction groups mutations that commit together or not at all.
type Transaction struct {
	ID        string     `json:"transactionId,omitempty"`
	Tag       string     `json:"tag,omitempty"`
	Mutations []Mutation `json:"mutations"`
}

type MutationResult struct {
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
}

type TransactionResult struct {
	TransactionID string           `json:"transactionId"`
	Results       []MutationResult `json:"results"`
	Documents     []Document       `json:"documents,omitempty"`
}

// DocumentIDs lists the distinct ids a transaction touches, sorted.
func (t Transaction) DocumentIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, m := range t.Mutations {
		id := m.TargetID()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedPaths(values map[string]any) []string {
	paths := make([]string, 0, len(values))
	for path := range values {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	if strings.ContainsAny(id, " \t\n/") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}
