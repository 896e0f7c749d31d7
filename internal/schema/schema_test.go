package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	shareable, ok := r.Lookup(ShareableType)
	require.True(t, ok)
	assert.True(t, shareable.IsDocument())
	assert.False(t, shareable.Options.Reusable)

	text, ok := r.Lookup("textBlock")
	require.True(t, ok)
	assert.True(t, text.IsObject())
	assert.True(t, text.Options.Reusable)
	assert.Equal(t, "heading", text.Preview.Title)

	assert.Equal(t, []string{"ctaBlock", "featuresGrid", "imageBlock", "multiObjectBlock", "textBlock"}, r.ReusableTypes())
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(Type{Name: "a"}, Type{Name: "a"})
	require.Error(t, err)

	_, err = NewRegistry(Type{Name: "  "})
	require.Error(t, err)
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "blocks")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.yaml"), []byte(`
types:
  - name: landing
    type: document
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "quote.yaml"), []byte(`
types:
  - name: quoteBlock
    options: {reusable: true}
`), 0o644))

	r, err := Load(filepath.Join(dir, "**", "*.yaml"))
	require.NoError(t, err)

	quote, ok := r.Lookup("quoteBlock")
	require.True(t, ok)
	assert.Equal(t, KindObject, quote.Kind, "kind defaults to object")
	assert.True(t, quote.Options.Reusable)

	_, ok = r.Lookup("landing")
	assert.True(t, ok)
}

func TestLoadNoMatches(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "*.yaml"))
	require.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Text Block", DisplayName("textBlock"))
	assert.Equal(t, "Features Grid", DisplayName("featuresGrid"))
	assert.Equal(t, "Hero", DisplayName("heroPageBlock"))
	assert.Equal(t, "", DisplayName(""))
}

func TestValidateShareableCardinality(t *testing.T) {
	r := Default()
	block := map[string]any{"_key": "a", "_type": "textBlock"}

	err := r.Validate(map[string]any{"_type": ShareableType, "title": "Hello", "content": []any{block}})
	require.NoError(t, err)

	err = r.Validate(map[string]any{"_type": ShareableType, "title": "Hello", "content": []any{}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	err = r.Validate(map[string]any{"_type": ShareableType, "title": "Hello", "content": []any{block, block}})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "at most 1")

	err = r.Validate(map[string]any{"_type": ShareableType, "title": "Hello", "content": []any{map[string]any{"_type": "hero"}}})
	require.ErrorAs(t, err, &verr)
}

func TestValidateUnknownType(t *testing.T) {
	err := Default().Validate(map[string]any{"_type": "nope"})
	require.ErrorIs(t, err, ErrUnknownType)
}
