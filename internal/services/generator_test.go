package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/titlereport/internal/ibm"
	"github.com/Lllllllleong/titlereport/internal/models"
)

type stubModel struct {
	inputs []string
	tokens []string
	reply  func(call int, input string) (string, error)
}

func (m *stubModel) Name() string { return "Watsonx" }

func (m *stubModel) Generate(_ context.Context, token, input string) (string, error) {
	m.inputs = append(m.inputs, input)
	m.tokens = append(m.tokens, token)
	return m.reply(len(m.inputs), input)
}

func TestReportGenerator_Generate(t *testing.T) {
	model := &stubModel{reply: func(int, string) (string, error) { return "# Report On Title", nil }}
	gen := NewReportGenerator(model, "PROMPT\n\n")

	chunk := models.Chunk{Index: 2, Pages: []models.TranslatedPage{
		{Label: "Page 1", Text: "first"},
		{Label: "Page 2", Err: errors.New("boom")},
	}}
	fragment := gen.Generate(context.Background(), chunk, "tok")

	assert.False(t, fragment.Failed())
	assert.Equal(t, 2, fragment.Index)
	assert.Equal(t, "Watsonx", fragment.Provider)
	assert.Equal(t, "# Report On Title", fragment.Content())
	assert.Equal(t, []string{"PROMPT\n\nfirst\n[Translation failed: boom]"}, model.inputs)
	assert.Equal(t, []string{"tok"}, model.tokens)
	assert.Equal(t, "Watsonx", gen.Provider())
}

func TestReportGenerator_Generate_MalformedResponse(t *testing.T) {
	model := &stubModel{reply: func(int, string) (string, error) {
		return "", &ibm.ResponseError{StatusCode: 502, Raw: "<html>bad gateway</html>", Err: errors.New("invalid character '<' looking for beginning of value")}
	}}
	fragment := NewReportGenerator(model, "P").Generate(context.Background(), models.Chunk{Index: 0}, "tok")

	assert.True(t, fragment.Failed())
	assert.Equal(t, "<html>bad gateway</html>", fragment.Raw)
	assert.Equal(t,
		"[Watsonx response error: invalid character '<' looking for beginning of value - Raw: <html>bad gateway</html>]",
		fragment.Content())
}

func TestReportGenerator_Generate_OtherError(t *testing.T) {
	model := &stubModel{reply: func(int, string) (string, error) { return "", errors.New("connection reset") }}
	fragment := NewReportGenerator(model, "P").Generate(context.Background(), models.Chunk{}, "")

	assert.True(t, fragment.Failed())
	assert.Empty(t, fragment.Raw)
	assert.Contains(t, fragment.Content(), "connection reset")
}
