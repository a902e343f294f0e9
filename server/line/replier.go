// Package line sends replies through the LINE Messaging API.
package line

import (
	"context"
	"fmt"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/teilomillet/zooly/server/processing"
	"go.uber.org/zap"
)

// Config holds the reply client settings.
type Config struct {
	ChannelAccessToken string

	// Endpoint overrides https://api.line.me, mainly for tests.
	Endpoint string

	HTTPClient *http.Client
}

// Replier posts text replies with a reply token. The SDK client performs a
// single attempt per call.
type Replier struct {
	api    *messaging_api.MessagingApiAPI
	logger *zap.Logger
}

var _ processing.Replier = (*Replier)(nil)

// NewReplier creates a reply client for the given channel.
func NewReplier(cfg Config, logger *zap.Logger) (*Replier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []messaging_api.MessagingApiAPIOption
	if cfg.Endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(cfg.Endpoint))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, messaging_api.WithHTTPClient(cfg.HTTPClient))
	}

	api, err := messaging_api.NewMessagingApiAPI(cfg.ChannelAccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}
	return &Replier{api: api, logger: logger}, nil
}

// Reply sends text as a single text message. The token is consumed by the
// platform whether or not the call succeeds.
func (r *Replier) Reply(ctx context.Context, replyToken, text string) error {
	_, err := r.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	})
	if err != nil {
		r.logger.Debug("Reply call failed", zap.Int("text_length", len(text)), zap.Error(err))
		return fmt.Errorf("reply message: %w", err)
	}
	return nil
}
