package bot

import (
	"context"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textOnly handles text but neither locations nor follows.
type textOnly struct {
	name    string
	actions []string
}

func (h textOnly) Name() string              { return h.name }
func (h textOnly) PostbackActions() []string { return h.actions }
func (h textOnly) CanHandle(string) bool     { return false }
func (h textOnly) HandleMessage(context.Context, string) []messaging_api.MessageInterface {
	return nil
}
func (h textOnly) HandlePostback(context.Context, Postback) []messaging_api.MessageInterface {
	return nil
}

func TestRegistry_DuplicatePostbackActionPanics(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(textOnly{name: "a", actions: []string{"weather"}})

	assert.PanicsWithValue(t,
		`bot: postback action "weather" claimed by both a and b`,
		func() { r.Register(textOnly{name: "b", actions: []string{"other", "weather"}}) })
}

func TestRegistry_OptionalCapabilities(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewRegistry()
	r.Register(textOnly{name: "plain"})
	assert.Nil(t, r.DispatchLocation(ctx, 25.03, 121.56, ""))
	assert.Nil(t, r.DispatchFollow(ctx))
	assert.Nil(t, r.DispatchMessage(ctx, "板橋"))

	msgs, ok := r.DispatchPostback(ctx, Postback{Action: "weather"})
	assert.False(t, ok)
	assert.Nil(t, msgs)

	fake := &fakeHandler{}
	r.Register(fake)
	require.NotNil(t, r.DispatchLocation(ctx, 25.03, 121.56, ""))
	r.DispatchUnfollow(ctx)
	assert.Equal(t, 1, fake.unfollows)
}
