package webhook

import (
	"time"
)

// InboundEvent is a text message ready for the responder. The reply token
// is single use: exactly one reply may be sent with it.
type InboundEvent struct {
	SourceText string
	ReplyToken string

	WebhookEventID string
	MessageID      string
	SourceType     string
	UserID         string
	Timestamp      time.Time
	Redelivery     bool
}

func timeFromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
