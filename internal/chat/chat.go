// Package chat forwards chatbot messages to a hosted language model and
// maps every outcome onto the reply shape the web client expects.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// SystemPrompt is sent with every message.
const SystemPrompt = `You are a helpful campus assistant for a Smart Campus platform. You help students, faculty, and staff with:
- Finding lost items and reporting found items
- Discovering and registering for campus events
- Learning about student clubs and organizations
- Submitting feedback and grievances
- Getting campus announcements and updates
- General campus navigation and information

Provide clear, concise, and helpful responses. Be friendly and professional. If you don't know something specific about the campus, acknowledge it and suggest they contact the appropriate department or check the platform directly.`

// Fixed client-facing texts.
const (
	RateLimitError = "Rate limit exceeded. Please try again later."
	RateLimitReply = "I'm experiencing high traffic right now. Please try again in a moment."
	QuotaError     = "Payment required. Please add credits to your workspace."
	QuotaReply     = "The AI service is temporarily unavailable. Please contact support."
	GenericReply   = "I'm having trouble processing your request. Please try again."
	EmptyReply     = "I'm sorry, I couldn't generate a response."
)

// Completer sends one user message with a system instruction and returns
// the text of the first completion. An empty string means the model
// returned no completion. Non-2xx upstream answers are *UpstreamError.
type Completer interface {
	Complete(ctx context.Context, apiKey, system, message string) (string, error)
}

// UpstreamError is a non-success answer from the completion API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("AI Gateway error: %d", e.StatusCode)
}

// ErrMissingCredential is returned (wrapped with the variable name) when
// the API key is not configured.
var ErrMissingCredential = errors.New("not configured")

// Request is the inbound chat payload.
type Request struct {
	Message string `json:"message"`
}

// Response is the outbound payload. Error is only set on failures.
type Response struct {
	Error    string `json:"error,omitempty"`
	Response string `json:"response"`
}

// Reply pairs a Response with the HTTP status to send it with.
type Reply struct {
	Status int
	Body   Response
}

// Outcome labels what happened to one chat request.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeQuotaExceeded  Outcome = "quota_exceeded"
	OutcomeUpstreamError  Outcome = "upstream_error"
	OutcomeConfigError    Outcome = "config_error"
	OutcomeTransportError Outcome = "transport_error"
)

func failure(status int, errText, reply string) Reply {
	return Reply{Status: status, Body: Response{Error: errText, Response: reply}}
}

// BadRequest is the reply for a request body that could not be decoded.
func BadRequest(err error) Reply {
	return failure(http.StatusInternalServerError, err.Error(), GenericReply)
}

// NewCompleter builds the Completer selected by provider ("gateway" or
// "gemini").
func NewCompleter(provider, gatewayURL, model string) (Completer, error) {
	switch provider {
	case "gateway", "":
		return NewGatewayClient(gatewayURL, model, nil), nil
	case "gemini":
		return NewGeminiClient(model, "", nil), nil
	default:
		return nil, fmt.Errorf("chat: unsupported provider %q", provider)
	}
}
