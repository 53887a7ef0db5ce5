package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/weamind-linebot-go/internal/bot"
	"github.com/garyellow/weamind-linebot-go/internal/config"
	"github.com/garyellow/weamind-linebot-go/internal/lineutil"
	"github.com/garyellow/weamind-linebot-go/internal/logger"
	"github.com/garyellow/weamind-linebot-go/internal/metrics"
)

const testSecret = "test_channel_secret"

type fakeReplier struct {
	mu       sync.Mutex
	requests []*messaging_api.ReplyMessageRequest
	err      error
}

func (f *fakeReplier) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &messaging_api.ReplyMessageResponse{}, f.err
}

func (f *fakeReplier) sent() []*messaging_api.ReplyMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*messaging_api.ReplyMessageRequest(nil), f.requests...)
}

// echoHandler answers every text with n copies of it.
type echoHandler struct {
	n         int
	unfollows int
	mu        sync.Mutex
}

func (e *echoHandler) Name() string              { return "echo" }
func (e *echoHandler) PostbackActions() []string { return []string{"weather"} }
func (e *echoHandler) CanHandle(string) bool     { return true }

func (e *echoHandler) HandleMessage(_ context.Context, text string) []messaging_api.MessageInterface {
	msgs := make([]messaging_api.MessageInterface, 0, e.n)
	for range e.n {
		msgs = append(msgs, lineutil.NewTextMessage(text))
	}
	return msgs
}

func (e *echoHandler) HandlePostback(_ context.Context, pb bot.Postback) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{lineutil.NewTextMessage(pb.Type)}
}

func (e *echoHandler) HandleUnfollow(context.Context) {
	e.mu.Lock()
	e.unfollows++
	e.mu.Unlock()
}

func (e *echoHandler) HandleFollow(context.Context) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{lineutil.NewTextMessage("welcome")}
}

func setupTestHandler(t *testing.T, echoes int) (*Handler, *fakeReplier, *echoHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())
	botCfg := config.DefaultBotConfig()
	botCfg.MaxMessagesPerReply = 2

	echo := &echoHandler{n: echoes}
	registry := bot.NewRegistry()
	registry.Register(echo)

	processor := bot.NewProcessor(bot.ProcessorConfig{
		Registry:  registry,
		Logger:    log,
		BotConfig: &botCfg,
	})

	replier := &fakeReplier{}
	h, err := NewHandler(HandlerConfig{
		ChannelSecret: testSecret,
		BotConfig:     &botCfg,
		Metrics:       m,
		Logger:        log,
		Processor:     processor,
		Client:        replier,
	})
	require.NoError(t, err)
	return h, replier, echo
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func post(t *testing.T, h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	router := gin.New()
	router.POST("/webhook", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Line-Signature", signature)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func waitForEvents(t *testing.T, h *Handler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
}

const textEventBody = `{"destination":"Ubot","events":[{
	"type":"message","mode":"active","timestamp":1700000000000,
	"webhookEventId":"01HTESTEVENT","deliveryContext":{"isRedelivery":false},
	"replyToken":"reply-token-123456",
	"source":{"type":"user","userId":"U1234567890"},
	"message":{"type":"text","id":"1","quoteToken":"q","text":"永和區"}}]}`

func TestHandle_InvalidSignature(t *testing.T) {
	h, replier, _ := setupTestHandler(t, 1)

	w := post(t, h, []byte(textEventBody), "invalid_signature")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	waitForEvents(t, h)
	assert.Empty(t, replier.sent())
}

func TestHandle_TextMessageReplies(t *testing.T) {
	h, replier, _ := setupTestHandler(t, 1)
	body := []byte(textEventBody)

	w := post(t, h, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)

	waitForEvents(t, h)
	sent := replier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "reply-token-123456", sent[0].ReplyToken)
	require.Len(t, sent[0].Messages, 1)
	msg, ok := sent[0].Messages[0].(*messaging_api.TextMessage)
	require.True(t, ok)
	assert.Equal(t, "永和區", msg.Text)
}

func TestHandle_TruncatesReplies(t *testing.T) {
	h, replier, _ := setupTestHandler(t, 4)
	body := []byte(textEventBody)

	post(t, h, body, sign(body))
	waitForEvents(t, h)

	sent := replier.sent()
	require.Len(t, sent, 1)
	assert.Len(t, sent[0].Messages, 2)
}

func TestHandle_ReplyErrorIsSwallowed(t *testing.T) {
	h, replier, _ := setupTestHandler(t, 1)
	replier.err = errors.New("Invalid reply token")
	body := []byte(textEventBody)

	w := post(t, h, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)
	waitForEvents(t, h)
	assert.Len(t, replier.sent(), 1)
}

func TestHandle_UnfollowHasNoReply(t *testing.T) {
	h, replier, echo := setupTestHandler(t, 1)
	body := []byte(`{"destination":"Ubot","events":[{
		"type":"unfollow","mode":"active","timestamp":1700000000000,
		"webhookEventId":"01HUNFOLLOW","deliveryContext":{"isRedelivery":true},
		"source":{"type":"user","userId":"U1234567890"}}]}`)

	w := post(t, h, body, sign(body))
	assert.Equal(t, http.StatusOK, w.Code)
	waitForEvents(t, h)

	assert.Empty(t, replier.sent())
	assert.Equal(t, 1, echo.unfollows)
}

func TestHandle_TooManyEvents(t *testing.T) {
	h, replier, _ := setupTestHandler(t, 1)
	h.maxEvents = 1

	body := []byte(`{"destination":"Ubot","events":[
		{"type":"follow","mode":"active","timestamp":1,"webhookEventId":"a","deliveryContext":{"isRedelivery":false},
		 "replyToken":"token-a","source":{"type":"user","userId":"U1"}},
		{"type":"follow","mode":"active","timestamp":2,"webhookEventId":"b","deliveryContext":{"isRedelivery":false},
		 "replyToken":"token-b","source":{"type":"user","userId":"U2"}}]}`)

	post(t, h, body, sign(body))
	waitForEvents(t, h)

	sent := replier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "token-a", sent[0].ReplyToken)
}

func TestWantsLoading(t *testing.T) {
	mentioned := webhook.TextMessageContent{
		Text: "@天氣 永和區",
		Mention: &webhook.Mention{Mentionees: []webhook.MentioneeInterface{
			webhook.UserMentionee{Index: 0, Length: 3, IsSelf: true},
		}},
	}

	tests := []struct {
		name  string
		event webhook.EventInterface
		want  bool
	}{
		{"personal text", webhook.MessageEvent{Source: webhook.UserSource{UserId: "U1"}, Message: webhook.TextMessageContent{Text: "hi"}}, true},
		{"group without mention", webhook.MessageEvent{Source: webhook.GroupSource{GroupId: "G1"}, Message: webhook.TextMessageContent{Text: "hi"}}, false},
		{"group with mention", webhook.MessageEvent{Source: webhook.GroupSource{GroupId: "G1"}, Message: mentioned}, true},
		{"group sticker", webhook.MessageEvent{Source: webhook.GroupSource{GroupId: "G1"}, Message: webhook.StickerMessageContent{}}, false},
		{"postback", webhook.PostbackEvent{Source: webhook.UserSource{UserId: "U1"}}, true},
		{"unfollow", webhook.UnfollowEvent{Source: webhook.UserSource{UserId: "U1"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wantsLoading(tt.event))
		})
	}
}

func TestHandlerShutdown(t *testing.T) {
	h, _, _ := setupTestHandler(t, 1)
	ctx := context.Background()

	require.NoError(t, h.Shutdown(ctx))
	require.NoError(t, h.Shutdown(ctx))
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name  string
		event webhook.EventInterface
		want  envelope
		ok    bool
	}{
		{
			"message",
			webhook.MessageEvent{WebhookEventId: "e1", ReplyToken: "r1", Source: webhook.UserSource{UserId: "U1"},
				DeliveryContext: &webhook.DeliveryContext{IsRedelivery: true}},
			envelope{kind: "message", id: "e1", replyToken: "r1", source: webhook.UserSource{UserId: "U1"}, redelivery: true},
			true,
		},
		{
			"unfollow has no reply token",
			webhook.UnfollowEvent{WebhookEventId: "e2", Source: webhook.UserSource{UserId: "U1"}},
			envelope{kind: "unfollow", id: "e2", source: webhook.UserSource{UserId: "U1"}},
			true,
		},
		{"unsupported", webhook.JoinEvent{WebhookEventId: "e3"}, envelope{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := open(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenSpent(t *testing.T) {
	assert.True(t, tokenSpent(errors.New(`unexpected status code: 400, {"message":"Invalid reply token"}`)))
	assert.False(t, tokenSpent(errors.New("connection reset by peer")))
}
