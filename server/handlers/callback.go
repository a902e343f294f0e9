// Package handlers provides the HTTP handlers of the relay server.
//
// The webhook contract with the platform is deliberately narrow:
//  1. A delivery that fails verification gets a 400 JSON error and nothing
//     else happens.
//  2. An authenticated delivery gets 200 "OK" after every text event has
//     been answered, whether the model replied or the fallback was used.
//  3. Reply failures are logged; they cannot change the response.
package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/teilomillet/zooly/errors"
	"github.com/teilomillet/zooly/server/middleware"
	"github.com/teilomillet/zooly/server/webhook"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes caps a webhook body when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// writeSlack is added to the per-event budget for writing the response.
const writeSlack = 5 * time.Second

// Verifier authenticates a delivery and extracts its text events.
type Verifier interface {
	VerifyAndParse(body []byte, signature string) ([]webhook.InboundEvent, error)
}

// Responder answers one text event.
type Responder interface {
	Respond(ctx context.Context, ev webhook.InboundEvent) error
}

// CallbackHandler receives webhook deliveries.
type CallbackHandler struct {
	verifier     Verifier
	responder    Responder
	maxBodyBytes int64
	eventBudget  time.Duration
	logger       *zap.Logger
}

// NewCallbackHandler creates the webhook handler. maxBodyBytes <= 0 selects
// DefaultMaxBodyBytes.
func NewCallbackHandler(verifier Verifier, responder Responder, maxBodyBytes int64, logger *zap.Logger) *CallbackHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallbackHandler{
		verifier:     verifier,
		responder:    responder,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// SetEventBudget sets how long one event may take to answer. When set, the
// connection's write deadline is moved to cover every event of a delivery,
// so a long delivery still gets its 200. Zero leaves the server's write
// timeout alone.
func (h *CallbackHandler) SetEventBudget(d time.Duration) {
	h.eventBudget = d
}

// ServeHTTP verifies the delivery, answers its text events one by one and
// acknowledges with 200 "OK".
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, errors.NewPayloadTooLargeError(requestID, h.maxBodyBytes))
			return
		}
		h.fail(w, errors.NewBadRequestError(requestID, "Failed to read request body", nil, err))
		return
	}

	events, err := h.verifier.VerifyAndParse(body, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		var relayErr *errors.RelayError
		if !errors.As(err, &relayErr) {
			relayErr = errors.NewInternalError(requestID, err)
		}
		h.fail(w, relayErr.WithRequestID(requestID))
		return
	}

	h.extendWriteDeadline(w, len(events), requestID)

	for _, ev := range events {
		if err := h.responder.Respond(r.Context(), ev); err != nil {
			errors.LogError(h.logger, err, requestID)
		}
	}

	h.logger.Debug("Webhook delivery handled",
		zap.String("request_id", requestID),
		zap.Int("events", len(events)),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func (h *CallbackHandler) extendWriteDeadline(w http.ResponseWriter, events int, requestID string) {
	if h.eventBudget <= 0 || events == 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(events)*h.eventBudget + writeSlack)
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("Failed to extend write deadline",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

func (h *CallbackHandler) fail(w http.ResponseWriter, err *errors.RelayError) {
	errors.LogError(h.logger, err, err.RequestID)
	errors.WriteError(w, err)
}
