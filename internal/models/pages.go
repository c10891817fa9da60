package models

import (
	"fmt"
	"strings"
)

// ErrorLabel is the page label used when the upload type is not supported.
const ErrorLabel = "Error"

// Upload is a user-supplied file: its name selects the parser.
type Upload struct {
	Name    string
	Content []byte
}

// Page is one labelled unit of extracted text.
type Page struct {
	Label string
	Text  string
}

// Pages is the ordered page text map produced by the extractor.
type Pages []Page

// PageLabel returns the synthetic, 1-indexed label for page n.
func PageLabel(n int) string {
	return fmt.Sprintf("Page %d", n)
}

// Labels returns the page labels in order.
func (p Pages) Labels() []string {
	labels := make([]string, len(p))
	for i, page := range p {
		labels[i] = page.Label
	}
	return labels
}

// Get returns the text stored under label.
func (p Pages) Get(label string) (string, bool) {
	for _, page := range p {
		if page.Label == label {
			return page.Text, true
		}
	}
	return "", false
}

// TranslatedPage is the outcome of translating one page. Exactly one of Text
// or Err is meaningful.
type TranslatedPage struct {
	Label  string
	Source string
	Text   string
	Err    error
}

// Failed reports whether translation of this page failed.
func (t TranslatedPage) Failed() bool {
	return t.Err != nil
}

// Content is the text forwarded downstream: the translation, or a placeholder
// naming the failure.
func (t TranslatedPage) Content() string {
	if t.Err != nil {
		return fmt.Sprintf("[Translation failed: %s]", t.Err.Error())
	}
	return t.Text
}

// Chunk is a group of consecutive translated pages sent in one model call.
type Chunk struct {
	Index int
	Pages []TranslatedPage
}

// Labels returns the labels of the pages in the chunk.
func (c Chunk) Labels() []string {
	labels := make([]string, len(c.Pages))
	for i, page := range c.Pages {
		labels[i] = page.Label
	}
	return labels
}

// Text joins the page contents with newlines.
func (c Chunk) Text() string {
	parts := make([]string, len(c.Pages))
	for i, page := range c.Pages {
		parts[i] = page.Content()
	}
	return strings.Join(parts, "\n")
}

// Fragment is the generated report text for one chunk.
type Fragment struct {
	Index    int
	Provider string
	Text     string
	Raw      string
	Err      error
}

// Failed reports whether generation for this chunk failed.
func (f Fragment) Failed() bool {
	return f.Err != nil
}

// Content is the text placed in the consolidated report. A failed fragment
// embeds the error and the raw response body so the operator can see it.
func (f Fragment) Content() string {
	if f.Err != nil {
		return fmt.Sprintf("[%s response error: %s - Raw: %s]", f.Provider, f.Err.Error(), f.Raw)
	}
	return f.Text
}
