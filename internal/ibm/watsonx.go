package ibm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/IBM/go-sdk-core/v5/core"
)

const (
	// DefaultGenerationURL is the us-south watsonx.ai text generation endpoint.
	DefaultGenerationURL = "https://us-south.ml.cloud.ibm.com/ml/v1/text/generation"
	// DefaultAPIVersion is the API version date sent as the version query parameter.
	DefaultAPIVersion = "2024-01-15"
	// DefaultModelID is the foundation model used for title reports.
	DefaultModelID = "meta-llama/llama-3-3-70b-instruct"
)

// GenerationParams are the decoding parameters sent with every request.
type GenerationParams struct {
	DecodingMethod    string   `json:"decoding_method"`
	MaxNewTokens      int      `json:"max_new_tokens"`
	MinNewTokens      int      `json:"min_new_tokens"`
	StopSequences     []string `json:"stop_sequences"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
}

// DefaultParams returns greedy decoding with an 8100 token ceiling, no stop
// sequences and the repetition penalty disabled.
func DefaultParams() GenerationParams {
	return GenerationParams{
		DecodingMethod:    "greedy",
		MaxNewTokens:      8100,
		MinNewTokens:      0,
		StopSequences:     []string{},
		RepetitionPenalty: 1,
	}
}

type generationRequest struct {
	Input      string           `json:"input"`
	Parameters GenerationParams `json:"parameters"`
	ModelID    string           `json:"model_id"`
	ProjectID  string           `json:"project_id"`
}

type generationResponse struct {
	ModelID string `json:"model_id"`
	Results []struct {
		GeneratedText   *string `json:"generated_text"`
		GeneratedTokens int     `json:"generated_token_count"`
		InputTokens     int     `json:"input_token_count"`
		StopReason      string  `json:"stop_reason"`
	} `json:"results"`
}

// ResponseError is a generation call whose response could not be used. Raw
// holds the response body as received.
type ResponseError struct {
	StatusCode int
	Raw        string
	Err        error
}

func (e *ResponseError) Error() string {
	return e.Err.Error()
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

var (
	errNoResults       = errors.New("response has no results")
	errNoGeneratedText = errors.New("first result has no generated_text")
)

// WatsonxClient calls the watsonx.ai text generation API.
type WatsonxClient struct {
	endpoint   string
	version    string
	modelID    string
	projectID  string
	params     GenerationParams
	httpClient *http.Client
}

// WatsonxConfig configures a WatsonxClient. Zero values take the defaults above.
type WatsonxConfig struct {
	Endpoint   string
	Version    string
	ModelID    string
	ProjectID  string
	Params     GenerationParams
	HTTPClient *http.Client
}

// NewWatsonxClient creates a WatsonxClient.
func NewWatsonxClient(cfg WatsonxConfig) *WatsonxClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultGenerationURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultAPIVersion
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Params.DecodingMethod == "" {
		cfg.Params.DecodingMethod = "greedy"
	}
	if cfg.Params.StopSequences == nil {
		cfg.Params.StopSequences = []string{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &WatsonxClient{
		endpoint:   cfg.Endpoint,
		version:    cfg.Version,
		modelID:    cfg.ModelID,
		projectID:  cfg.ProjectID,
		params:     cfg.Params,
		httpClient: cfg.HTTPClient,
	}
}

// Name identifies the provider in report placeholders.
func (c *WatsonxClient) Name() string {
	return "Watsonx"
}

// Generate sends input to the model and returns results[0].generated_text.
// Transport failures and unusable responses are returned as *ResponseError.
func (c *WatsonxClient) Generate(ctx context.Context, token, input string) (string, error) {
	builder := core.NewRequestBuilder(core.POST).WithContext(ctx)
	if _, err := builder.ResolveRequestURL(c.endpoint, "", nil); err != nil {
		return "", fmt.Errorf("invalid generation endpoint %q: %w", c.endpoint, err)
	}
	builder.AddQuery("version", c.version)
	builder.AddHeader("Accept", "application/json")
	if _, err := builder.SetBodyContentJSON(generationRequest{
		Input:      input,
		Parameters: c.params,
		ModelID:    c.modelID,
		ProjectID:  c.projectID,
	}); err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}
	req, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	bearer := &core.BearerTokenAuthenticator{BearerToken: token}
	if err := bearer.Authenticate(req); err != nil {
		return "", fmt.Errorf("failed to authorize generation request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ResponseError{Err: fmt.Errorf("generation request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ResponseError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read generation response: %w", err)}
	}

	var gr generationResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", &ResponseError{StatusCode: resp.StatusCode, Raw: string(body), Err: err}
	}
	if len(gr.Results) == 0 {
		return "", &ResponseError{StatusCode: resp.StatusCode, Raw: string(body), Err: errNoResults}
	}
	if gr.Results[0].GeneratedText == nil {
		return "", &ResponseError{StatusCode: resp.StatusCode, Raw: string(body), Err: errNoGeneratedText}
	}
	return *gr.Results[0].GeneratedText, nil
}
