package webhook

import (
	"encoding/json"
	"strconv"

	linewebhook "github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/teilomillet/zooly/errors"
	"github.com/teilomillet/zooly/server/metrics"
	"go.uber.org/zap"
)

// Event kind labels that are not a plain event type.
const (
	kindUnknown        = "unknown"
	kindInvalidMessage = "message/invalid"
	kindMessagePrefix  = "message/"
)

// Gateway verifies deliveries and turns them into InboundEvents.
type Gateway struct {
	secret  string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewGateway creates a gateway for the given channel secret. An empty secret
// would accept nothing, so it is rejected here instead of per request.
func NewGateway(channelSecret string, logger *zap.Logger, m *metrics.Metrics) (*Gateway, error) {
	if channelSecret == "" {
		return nil, errors.NewConfigurationError("channel secret is required", nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		secret:  channelSecret,
		logger:  logger,
		metrics: m,
	}, nil
}

// VerifyAndParse authenticates body against signature and returns the text
// message events it carries, in delivery order.
//
// A bad signature yields an authentication_error and no events. A body that
// authenticates but cannot be decoded yields a bad_request error.
func (g *Gateway) VerifyAndParse(body []byte, signature string) ([]InboundEvent, error) {
	if err := VerifySignature(g.secret, body, signature); err != nil {
		g.countDelivery("invalid_signature")
		return nil, err
	}

	var req linewebhook.CallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		g.countDelivery("malformed")
		return nil, errors.NewBadRequestError("", "Malformed webhook payload", nil, err)
	}
	g.countDelivery("accepted")

	events := make([]InboundEvent, 0, len(req.Events))
	for _, e := range req.Events {
		ev, kind, ok := toInbound(e)
		g.countEvent(kind, ok)
		if !ok {
			g.logger.Debug("Skipping webhook event", zap.String("kind", kind))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// toInbound maps one event. kind is a label for metrics and logs.
func toInbound(e linewebhook.EventInterface) (InboundEvent, string, bool) {
	switch ev := e.(type) {
	case linewebhook.MessageEvent:
		return messageToInbound(ev)
	case linewebhook.UnknownEvent:
		return InboundEvent{}, kindUnknown, false
	default:
		return InboundEvent{}, e.GetType(), false
	}
}

func messageToInbound(e linewebhook.MessageEvent) (InboundEvent, string, bool) {
	switch msg := e.Message.(type) {
	case linewebhook.TextMessageContent:
		kind := kindMessagePrefix + msg.GetType()
		// Console "verify" deliveries carry no usable reply token.
		if e.ReplyToken == "" {
			return InboundEvent{}, kind, false
		}
		return newInboundEvent(e, msg), kind, true
	case linewebhook.UnknownMessageContent:
		return InboundEvent{}, kindMessagePrefix + kindUnknown, false
	case nil:
		return InboundEvent{}, kindInvalidMessage, false
	default:
		return InboundEvent{}, kindMessagePrefix + msg.GetType(), false
	}
}

func newInboundEvent(e linewebhook.MessageEvent, msg linewebhook.TextMessageContent) InboundEvent {
	ev := InboundEvent{
		SourceText:     msg.Text,
		ReplyToken:     e.ReplyToken,
		WebhookEventID: e.WebhookEventId,
		MessageID:      msg.Id,
		Timestamp:      timeFromMillis(e.Timestamp),
	}
	switch src := e.Source.(type) {
	case linewebhook.UserSource:
		ev.SourceType, ev.UserID = src.GetType(), src.UserId
	case linewebhook.GroupSource:
		ev.SourceType, ev.UserID = src.GetType(), src.UserId
	case linewebhook.RoomSource:
		ev.SourceType, ev.UserID = src.GetType(), src.UserId
	case nil:
	default:
		ev.SourceType = src.GetType()
	}
	if e.DeliveryContext != nil {
		ev.Redelivery = e.DeliveryContext.IsRedelivery
	}
	return ev
}

func (g *Gateway) countDelivery(result string) {
	if g.metrics != nil {
		g.metrics.WebhookDeliveries.WithLabelValues(result).Inc()
	}
}

func (g *Gateway) countEvent(kind string, dispatched bool) {
	if g.metrics != nil {
		g.metrics.WebhookEvents.WithLabelValues(kind, strconv.FormatBool(dispatched)).Inc()
	}
}
