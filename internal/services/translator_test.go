package services

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// stubTranslator upper-cases text and fails for text containing "fail".
type stubTranslator struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, source+">"+target+":"+text)
	s.mu.Unlock()
	if strings.Contains(text, "fail") {
		return "", errors.New("429 too many requests")
	}
	return strings.ToUpper(text), nil
}

func TestPageTranslator_Translate(t *testing.T) {
	stub := &stubTranslator{}
	tr := NewPageTranslator(stub, TranslatorConfig{SourceLanguage: "kn", TargetLanguage: "en"})

	pages := models.Pages{
		{Label: "Page 1", Text: "one"},
		{Label: "Page 2", Text: "please fail"},
		{Label: "Page 4", Text: "   "},
		{Label: "Page 5", Text: "five"},
	}

	var done atomic.Int32
	out := tr.Translate(context.Background(), pages, func(models.TranslatedPage) { done.Add(1) })

	require.Len(t, out, 4)
	assert.Equal(t, int32(4), done.Load())

	assert.Equal(t, "Page 1", out[0].Label)
	assert.Equal(t, "ONE", out[0].Content())

	assert.True(t, out[1].Failed())
	assert.Equal(t, "[Translation failed: 429 too many requests]", out[1].Content())
	assert.Equal(t, "please fail", out[1].Source)

	assert.ErrorIs(t, out[2].Err, ErrEmptyText)
	assert.Equal(t, "FIVE", out[3].Content())

	assert.Contains(t, stub.calls, "kn>en:one")
	assert.Len(t, stub.calls, 3, "blank pages are not sent")
}

func TestPageTranslator_Translate_Concurrent(t *testing.T) {
	tr := NewPageTranslator(&stubTranslator{}, TranslatorConfig{SourceLanguage: "kn", TargetLanguage: "en", Concurrency: 8})

	pages := make(models.Pages, 50)
	for i := range pages {
		pages[i] = models.Page{Label: models.PageLabel(i + 1), Text: "page " + models.PageLabel(i+1)}
	}

	out := tr.Translate(context.Background(), pages, nil)
	require.Len(t, out, 50)
	for i, p := range out {
		assert.Equal(t, pages[i].Label, p.Label)
		assert.Equal(t, strings.ToUpper(pages[i].Text), p.Text)
	}
}

func TestPageTranslator_Translate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubTranslator{}
	out := NewPageTranslator(stub, TranslatorConfig{TargetLanguage: "en"}).Translate(ctx, models.Pages{{Label: "Page 1", Text: "x"}}, nil)

	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].Err, context.Canceled)
	assert.Empty(t, stub.calls)
}

func TestPageTranslator_NeverFailsProperty(t *testing.T) {
	tr := NewPageTranslator(&stubTranslator{}, TranslatorConfig{SourceLanguage: "kn", TargetLanguage: "en", Concurrency: 4})

	property := func(texts []string) bool {
		pages := make(models.Pages, len(texts))
		for i, text := range texts {
			pages[i] = models.Page{Label: models.PageLabel(i + 1), Text: text}
		}
		out := tr.Translate(context.Background(), pages, nil)
		if len(out) != len(pages) {
			return false
		}
		for i := range out {
			if out[i].Label != pages[i].Label {
				return false
			}
			if out[i].Failed() && !strings.HasPrefix(out[i].Content(), "[Translation failed: ") {
				return false
			}
		}
		return true
	}

	cfg := &quick.Config{MaxCount: 100, Rand: rand.New(rand.NewSource(42))}
	require.NoError(t, quick.Check(property, cfg))
}
