// Package ibm talks to IBM Cloud: the IAM token endpoint and the watsonx.ai
// text generation API.
package ibm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/IBM/go-sdk-core/v5/core"
)

const (
	// DefaultIAMURL is the IBM Cloud identity token endpoint.
	DefaultIAMURL = "https://iam.cloud.ibm.com/identity/token"

	tokenPath = "/identity/token"
)

// ErrNoAccessToken is returned when no bearer token could be obtained.
var ErrNoAccessToken = errors.New("identity response has no access_token")

// Authenticator exchanges a long-lived API key for a short-lived bearer token.
type Authenticator struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAuthenticator creates an Authenticator. endpoint is the full token URL;
// empty falls back to IBM Cloud and a nil client uses http.DefaultClient.
func NewAuthenticator(apiKey, endpoint string, httpClient *http.Client) *Authenticator {
	if endpoint == "" {
		endpoint = DefaultIAMURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Authenticator{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(strings.TrimRight(endpoint, "/"), tokenPath),
		httpClient: httpClient,
	}
}

// Token performs one apikey grant request. A fresh IamAuthenticator is built
// per call so nothing is cached or refreshed between runs.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := *a.httpClient
	client.Transport = contextTransport{ctx: ctx, base: a.httpClient.Transport}

	iam := &core.IamAuthenticator{
		ApiKey: a.apiKey,
		URL:    a.baseURL,
		Client: &client,
	}
	if err := iam.Validate(); err != nil {
		return "", fmt.Errorf("invalid IAM credentials: %w", err)
	}

	resp, err := iam.RequestToken()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoAccessToken, err)
	}
	if resp == nil || resp.AccessToken == "" {
		return "", ErrNoAccessToken
	}
	return resp.AccessToken, nil
}

// contextTransport binds requests the SDK builds without a context to ctx.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}
