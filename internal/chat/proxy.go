package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// Proxy answers one chat message per call. It holds no per-request state
// and never retries.
type Proxy struct {
	completer Completer
	keyName   string
	lookupKey func(string) string
	log       *zap.Logger

	// Observe, when set, is called once per Answer with its outcome.
	Observe func(Outcome)
}

// NewProxy returns a proxy that reads the API key from the environment
// variable keyName on every call.
func NewProxy(completer Completer, keyName string, log *zap.Logger) *Proxy {
	return &Proxy{
		completer: completer,
		keyName:   keyName,
		lookupKey: os.Getenv,
		log:       log,
	}
}

// WithKeyLookup replaces the environment lookup, for tests.
func (p *Proxy) WithKeyLookup(lookup func(string) string) *Proxy {
	p.lookupKey = lookup
	return p
}

// Answer forwards message upstream and maps the result.
func (p *Proxy) Answer(ctx context.Context, message string) Reply {
	apiKey := p.lookupKey(p.keyName)
	if apiKey == "" {
		err := fmt.Errorf("%s %w", p.keyName, ErrMissingCredential)
		p.log.Error("chat credential missing", zap.String("env", p.keyName))
		return p.done(OutcomeConfigError, failure(http.StatusInternalServerError, err.Error(), GenericReply))
	}

	p.log.Debug("chat message received", zap.Int("length", len(message)))

	text, err := p.completer.Complete(ctx, apiKey, SystemPrompt, message)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			p.log.Error("chat upstream error",
				zap.Int("status", upstream.StatusCode),
				zap.String("body", upstream.Body))

			switch upstream.StatusCode {
			case http.StatusTooManyRequests:
				return p.done(OutcomeRateLimited,
					failure(http.StatusTooManyRequests, RateLimitError, RateLimitReply))
			case http.StatusPaymentRequired:
				return p.done(OutcomeQuotaExceeded,
					failure(http.StatusPaymentRequired, QuotaError, QuotaReply))
			default:
				return p.done(OutcomeUpstreamError,
					failure(http.StatusInternalServerError, upstream.Error(), GenericReply))
			}
		}

		p.log.Error("chat request failed", zap.Error(err))
		return p.done(OutcomeTransportError,
			failure(http.StatusInternalServerError, err.Error(), GenericReply))
	}

	if text == "" {
		text = EmptyReply
	}

	p.log.Debug("chat reply sent", zap.Int("length", len(text)))
	return p.done(OutcomeOK, Reply{Status: http.StatusOK, Body: Response{Response: text}})
}

func (p *Proxy) done(outcome Outcome, reply Reply) Reply {
	if p.Observe != nil {
		p.Observe(outcome)
	}
	return reply
}
