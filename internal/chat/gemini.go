package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API directly. A fresh genai client is built
// per call because the API key is read per request.
type GeminiClient struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient accepts gateway-style model names ("google/gemini-2.5-flash")
// as well as bare ones. baseURL is empty for the public endpoint.
func NewGeminiClient(model, baseURL string, httpClient *http.Client) *GeminiClient {
	return &GeminiClient{
		model:      strings.TrimPrefix(model, "google/"),
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Complete implements Completer.
func (g *GeminiClient) Complete(ctx context.Context, apiKey, system, message string) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(message), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return "", err
	}

	return resp.Text(), nil
}
