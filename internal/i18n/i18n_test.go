package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalog(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"en", "hi"}, c.Languages())

	tr := c.Translator("EN")
	assert.Equal(t, "en", tr.Lang())
	assert.Equal(t, "Bill Reminder: Netflix", tr.Format("reminder.title", map[string]string{"name": "Netflix"}))
	assert.Equal(t, "Payment of ₹649 is due on 15th", tr.Format("reminder.body", map[string]string{
		"symbol": "₹",
		"amount": "649",
		"day":    "15",
	}))
}

func TestTranslatorFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"l/en.yaml":   {Data: []byte("en:\n  a:\n    b: english\n  only: en-only\n")},
		"l/hi.yml":    {Data: []byte("hi:\n  a:\n    b: hindi\n")},
		"l/notes.txt": {Data: []byte("ignored")},
	}

	c, err := LoadFS(fsys, "l", "en")
	require.NoError(t, err)

	hi := c.Translator("hi")
	assert.Equal(t, "hindi", hi.T("a.b"))
	assert.Equal(t, "en-only", hi.T("only"))
	assert.Equal(t, "missing.key", hi.T("missing.key"))

	assert.Equal(t, "en", c.Translator("fr").Lang())
}

func TestLoadFSErrors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"l/readme.md": {Data: []byte("x")}}, "l", "en")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"l/hi.yaml": {Data: []byte("hi:\n  k: v\n")}}, "l", "en")
	assert.ErrorContains(t, err, "default language")

	_, err = LoadFS(fstest.MapFS{"l/en.yaml": {Data: []byte("en: [")}}, "l", "en")
	assert.ErrorContains(t, err, "parse file")
}
