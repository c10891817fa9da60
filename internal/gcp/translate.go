package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// ErrNoTranslation is returned when the API answers with an empty list.
var ErrNoTranslation = errors.New("translation api returned no results")

// translationAPI is the subset of *translate.Client used here.
type translationAPI interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	Close() error
}

// CloudTranslator translates text with the Cloud Translation API.
type CloudTranslator struct {
	api translationAPI
}

// NewCloudTranslator creates a translator using application default
// credentials. A non-empty endpoint overrides the API endpoint.
func NewCloudTranslator(ctx context.Context, endpoint string) (*CloudTranslator, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation client: %w", err)
	}
	return &CloudTranslator{api: client}, nil
}

// Translate translates text from source to target. Source "auto" lets the
// API detect the language.
func (t *CloudTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	targetTag, err := language.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target language %q: %w", target, err)
	}
	opts := &translate.Options{Format: translate.Text}
	if source != "" && source != "auto" {
		sourceTag, err := language.Parse(source)
		if err != nil {
			return "", fmt.Errorf("invalid source language %q: %w", source, err)
		}
		opts.Source = sourceTag
	}

	results, err := t.api.Translate(ctx, []string{text}, targetTag, opts)
	if err != nil {
		return "", fmt.Errorf("cloud translation failed: %w", err)
	}
	if len(results) == 0 {
		return "", ErrNoTranslation
	}
	return results[0].Text, nil
}

// Close releases the translation client.
func (t *CloudTranslator) Close() error {
	return t.api.Close()
}
