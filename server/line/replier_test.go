package line

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type replyBody struct {
	ReplyToken string `json:"replyToken"`
	Messages   []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"messages"`
}

func TestReplierReply(t *testing.T) {
	var got replyBody
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, "Bearer channel-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sentMessages":[]}`))
	}))
	defer srv.Close()

	r, err := NewReplier(Config{ChannelAccessToken: "channel-token", Endpoint: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, r.Reply(context.Background(), "reply-token", "Zee zee ho~ 🍌"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "reply-token", got.ReplyToken)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "text", got.Messages[0].Type)
	assert.Equal(t, "Zee zee ho~ 🍌", got.Messages[0].Text)
}

func TestReplierReplyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	r, err := NewReplier(Config{ChannelAccessToken: "t", Endpoint: srv.URL}, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = r.Reply(context.Background(), "used-token", "hi")
	require.Error(t, err)
}
