package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// ReportSystemPrompt frames every report request sent to Gemini.
const ReportSystemPrompt = "You are a legal analyst preparing a report on title from translated land records. Follow the user's instructions and output format exactly."

// ErrNoCandidates is returned when the model answers without usable text.
var ErrNoCandidates = errors.New("vertex response has no text candidates")

// VertexClient holds the pre-configured report model.
type VertexClient struct {
	ReportModel *genai.GenerativeModel
	baseClient  *genai.Client
}

// NewVertexClient creates a client whose report model decodes greedily and
// stops at maxOutputTokens.
func NewVertexClient(ctx context.Context, projectID, region, modelName string, maxOutputTokens int) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	reportModel := baseClient.GenerativeModel(modelName)
	reportModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ReportSystemPrompt)},
	}
	reportModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	if maxOutputTokens > 0 {
		reportModel.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(maxOutputTokens))
	}
	reportModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		ReportModel: reportModel,
		baseClient:  baseClient,
	}, nil
}

// Name identifies the provider in report placeholders.
func (c *VertexClient) Name() string {
	return "Vertex AI"
}

// Generate sends input to the report model. Vertex authenticates through
// application default credentials, so token is ignored.
func (c *VertexClient) Generate(ctx context.Context, _ string, input string) (string, error) {
	resp, err := c.ReportModel.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	text, ok := extractText(resp)
	if !ok {
		return "", ErrNoCandidates
	}
	return text, nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", false
	}

	var b strings.Builder
	var found bool
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
			found = true
		}
	}
	return strings.TrimSpace(b.String()), found
}

// Close releases the underlying client.
func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
