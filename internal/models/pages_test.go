package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageLabel(t *testing.T) {
	assert.Equal(t, "Page 1", PageLabel(1))
	assert.Equal(t, "Page 200", PageLabel(200))
}

func TestPages_LabelsAndGet(t *testing.T) {
	pages := Pages{{Label: "Page 1", Text: "one"}, {Label: "Page 3", Text: "three"}}

	assert.Equal(t, []string{"Page 1", "Page 3"}, pages.Labels())

	text, ok := pages.Get("Page 3")
	assert.True(t, ok)
	assert.Equal(t, "three", text)

	_, ok = pages.Get("Page 2")
	assert.False(t, ok)
}

func TestTranslatedPage_Content(t *testing.T) {
	ok := TranslatedPage{Label: "Page 1", Text: "hello"}
	assert.False(t, ok.Failed())
	assert.Equal(t, "hello", ok.Content())

	failed := TranslatedPage{Label: "Page 2", Err: errors.New("quota exceeded")}
	assert.True(t, failed.Failed())
	assert.Equal(t, "[Translation failed: quota exceeded]", failed.Content())
}

func TestChunk_Text(t *testing.T) {
	chunk := Chunk{Pages: []TranslatedPage{
		{Label: "Page 1", Text: "first"},
		{Label: "Page 2", Err: errors.New("boom")},
		{Label: "Page 3", Text: "third"},
	}}

	assert.Equal(t, "first\n[Translation failed: boom]\nthird", chunk.Text())
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3"}, chunk.Labels())
}

func TestFragment_Content(t *testing.T) {
	ok := Fragment{Provider: "Watsonx", Text: "# Report On Title"}
	assert.Equal(t, "# Report On Title", ok.Content())

	failed := Fragment{Provider: "Watsonx", Raw: "<html>bad gateway</html>", Err: errors.New("invalid character '<'")}
	assert.True(t, failed.Failed())
	assert.Equal(t, "[Watsonx response error: invalid character '<' - Raw: <html>bad gateway</html>]", failed.Content())
}
