package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teilomillet/zooly/config"
	relayerrors "github.com/teilomillet/zooly/errors"
	"github.com/teilomillet/zooly/server/circuitbreaker"
	"github.com/teilomillet/zooly/server/metrics"
	"github.com/teilomillet/zooly/server/middleware"
	"github.com/teilomillet/zooly/server/webhook"
	"go.uber.org/zap"
)

// Default per-call budgets. They are detached from the inbound request so
// a platform that hangs up early does not cost the user their reply.
const (
	DefaultCompletionTimeout = 30 * time.Second
	DefaultReplyTimeout      = 15 * time.Second
)

// Fallback reasons, used as a metrics label.
const (
	reasonError       = "error"
	reasonTimeout     = "timeout"
	reasonEmpty       = "empty"
	reasonCircuitOpen = "circuit_open"
)

var errEmptyCompletion = errors.New("completion returned no content")

// Responder answers one inbound event with exactly one reply.
type Responder struct {
	persona   config.PersonaConfig
	completer Completer
	replier   Replier
	logger    *zap.Logger
	metrics   *metrics.Metrics
	tokens    TokenCounter

	completionTimeout time.Duration
	replyTimeout      time.Duration
}

// NewResponder creates a responder for persona. The persona is copied; later
// changes by the caller are not observed.
func NewResponder(persona config.PersonaConfig, completer Completer, replier Replier, logger *zap.Logger, m *metrics.Metrics) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		persona:           persona,
		completer:         completer,
		replier:           replier,
		logger:            logger,
		metrics:           m,
		completionTimeout: DefaultCompletionTimeout,
		replyTimeout:      DefaultReplyTimeout,
	}
}

// SetTokenCounter enables prompt token accounting. nil disables it.
func (r *Responder) SetTokenCounter(tc TokenCounter) {
	r.tokens = tc
}

// SetCompletionTimeout bounds each completion call. Zero keeps the default.
func (r *Responder) SetCompletionTimeout(d time.Duration) {
	if d > 0 {
		r.completionTimeout = d
	}
}

// SetReplyTimeout bounds each reply call. Zero keeps the default.
func (r *Responder) SetReplyTimeout(d time.Duration) {
	if d > 0 {
		r.replyTimeout = d
	}
}

// EventBudget is the longest Respond can take for one event: one completion
// call plus one reply call.
func (r *Responder) EventBudget() time.Duration {
	return r.completionTimeout + r.replyTimeout
}

// Persona returns the persona the responder speaks with.
func (r *Responder) Persona() config.PersonaConfig {
	return r.persona
}

// Respond composes the prompt for ev, asks the completer once and replies
// once with the model text or, if the completion failed, the fallback text.
//
// Completion failures never escape. The only error returned is a
// reply_delivery_error when the reply call itself fails.
func (r *Responder) Respond(ctx context.Context, ev webhook.InboundEvent) error {
	requestID := middleware.GetRequestID(ctx)
	logger := r.logger.With(
		zap.String("request_id", requestID),
		zap.String("webhook_event_id", ev.WebhookEventID),
	)

	req := Compose(r.persona, ev)
	result := r.complete(ctx, req, requestID, logger)

	text := result.Text
	if !result.OK() {
		reason := fallbackReason(result.Err)
		logger.Warn("Completion failed, sending fallback reply",
			zap.String("error_type", string(relayerrors.CompletionProviderError)),
			zap.String("reason", reason),
			zap.Error(result.Err),
		)
		if r.metrics != nil {
			r.metrics.FallbacksTotal.WithLabelValues(reason).Inc()
		}
		text = r.persona.FallbackText
	}

	if err := r.reply(ctx, ev.ReplyToken, text); err != nil {
		if r.metrics != nil {
			r.metrics.RepliesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		}
		return relayerrors.NewReplyDeliveryError(requestID, err)
	}

	if r.metrics != nil {
		r.metrics.RepliesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	logger.Debug("Reply sent",
		zap.Bool("fallback", !result.OK()),
		zap.Int("reply_length", len(text)),
	)
	return nil
}

// complete performs the single completion attempt and folds every failure
// mode into the result as a completion_provider_error.
func (r *Responder) complete(ctx context.Context, req CompletionRequest, requestID string, logger *zap.Logger) CompletionResult {
	if r.tokens != nil {
		if n, err := r.tokens.CountTokens(req.Model, req.Messages()); err != nil {
			logger.Debug("Token counting unavailable", zap.Error(err))
		} else if r.metrics != nil {
			r.metrics.PromptTokens.WithLabelValues(req.Model).Observe(float64(n))
		}
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.completionTimeout)
	defer cancel()

	start := time.Now()
	content, err := r.completer.Complete(callCtx, req)
	if r.metrics != nil {
		r.metrics.CompletionDuration.WithLabelValues(req.Model).Observe(time.Since(start).Seconds())
	}

	outcome := metrics.OutcomeSuccess
	defer func() {
		if r.metrics != nil {
			r.metrics.CompletionsTotal.WithLabelValues(req.Model, outcome).Inc()
		}
	}()

	if err != nil {
		outcome = metrics.OutcomeFailure
		// Some transports lose the context error; keep the timeout visible.
		if !errors.Is(err, context.DeadlineExceeded) && callCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return CompletionResult{Err: relayerrors.NewCompletionProviderError(requestID, "completion call failed", err)}
	}

	text := strings.TrimSpace(content)
	if text == "" {
		outcome = metrics.OutcomeEmpty
		return CompletionResult{Err: relayerrors.NewCompletionProviderError(requestID, "empty completion", errEmptyCompletion)}
	}
	return CompletionResult{Text: text}
}

func (r *Responder) reply(ctx context.Context, replyToken, text string) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.replyTimeout)
	defer cancel()
	return r.replier.Reply(callCtx, replyToken, text)
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, errEmptyCompletion):
		return reasonEmpty
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return reasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	default:
		return reasonError
	}
}
