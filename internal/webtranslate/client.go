// Package webtranslate calls the public Google Translate web endpoint used by
// the gtx browser client. It needs no credentials.
package webtranslate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

const (
	// DefaultEndpoint is the gtx translation endpoint.
	DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"
	// MaxQueryLength is the longest text, in characters, sent in one request.
	MaxQueryLength = 5000
	// AutoDetect lets the endpoint detect the source language.
	AutoDetect = "auto"
)

// ErrEmptyResponse is returned when the endpoint answers without any segments.
var ErrEmptyResponse = errors.New("translation response has no segments")

// Client translates text through the web endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a Client. An empty endpoint uses DefaultEndpoint and a nil
// client uses http.DefaultClient.
func New(endpoint string, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Translate translates text from source to target. Text longer than
// MaxQueryLength is split on line boundaries and the pieces are translated in
// order; the first failing piece fails the whole text.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := checkLanguage(source, true); err != nil {
		return "", err
	}
	if err := checkLanguage(target, false); err != nil {
		return "", err
	}

	var out strings.Builder
	for i, piece := range splitQuery(text, MaxQueryLength) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		translated, err := c.translateOne(ctx, piece, source, target)
		if err != nil {
			return "", fmt.Errorf("piece %d: %w", i+1, err)
		}
		out.WriteString(translated)
	}
	return out.String(), nil
}

func (c *Client) translateOne(ctx context.Context, text, source, target string) (string, error) {
	form := url.Values{}
	form.Set("client", "gtx")
	form.Set("sl", source)
	form.Set("tl", target)
	form.Set("dt", "t")
	form.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read translation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation endpoint returned status %d", resp.StatusCode)
	}
	return parseSegments(body)
}

// parseSegments reads the nested array response. The first element lists the
// translated segments; each segment starts with its translated text.
func parseSegments(body []byte) (string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", fmt.Errorf("failed to decode translation response: %w", err)
	}
	if len(top) == 0 {
		return "", ErrEmptyResponse
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(top[0], &segments); err != nil {
		return "", fmt.Errorf("failed to decode translation segments: %w", err)
	}
	if len(segments) == 0 {
		return "", ErrEmptyResponse
	}

	var out strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var s *string
		if err := json.Unmarshal(seg[0], &s); err != nil {
			return "", fmt.Errorf("failed to decode translation segment: %w", err)
		}
		if s != nil {
			out.WriteString(*s)
		}
	}
	return out.String(), nil
}

func checkLanguage(code string, allowAuto bool) error {
	if allowAuto && code == AutoDetect {
		return nil
	}
	if _, err := language.Parse(code); err != nil {
		return fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return nil
}

// splitQuery cuts text into pieces of at most limit characters, preferring to
// cut after a newline. Joining the pieces yields text unchanged.
func splitQuery(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var pieces []string
	for text != "" {
		if utf8.RuneCountInString(text) <= limit {
			pieces = append(pieces, text)
			break
		}
		cut := byteOffset(text, limit)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		pieces = append(pieces, text[:cut])
		text = text[cut:]
	}
	return pieces
}

// byteOffset returns the byte index just after the first n runes of s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
