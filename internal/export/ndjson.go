package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"pageblocks/api/internal/store"
)

// WriteNDJSON writes one document per line.
func WriteNDJSON(w io.Writer, docs []store.Document) error {
	enc := json.NewEncoder(w)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode %s: %w", doc.ID(), err)
		}
	}
	return nil
}

// ReadNDJSON parses documents written by WriteNDJSON. Blank lines are skipped.
func ReadNDJSON(r io.Reader) ([]store.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var docs []store.Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var doc store.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ndjson: %w", err)
	}
	return docs, nil
}
