// Package bot provides the handler interface and event processing for LINE bot modules.
// Each module implements Handler; modules that understand location messages or
// follow events implement the optional interfaces as well.
package bot

import (
	"context"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Handler defines the interface that all bot modules must implement.
type Handler interface {
	// Name identifies the module in logs and metrics.
	Name() string

	// PostbackActions lists the postback "action" values this module owns.
	PostbackActions() []string

	// CanHandle reports whether the module wants the given (sanitized) text message.
	CanHandle(text string) bool

	// HandleMessage processes a text message and returns LINE message responses.
	// Returns at most five messages, the LINE reply limit.
	HandleMessage(ctx context.Context, text string) []messaging_api.MessageInterface

	// HandlePostback processes a postback whose action is listed in PostbackActions.
	//
	// Postback Format Convention:
	//   - URL query string, e.g. "action=weather&type=home"
	//   - "action" selects the module, "type" the operation within it
	//   - Max 300 bytes per LINE API limit
	HandlePostback(ctx context.Context, pb Postback) []messaging_api.MessageInterface
}

// LocationHandler is implemented by modules that answer shared locations.
// address is empty when LINE did not attach one.
type LocationHandler interface {
	HandleLocation(ctx context.Context, lat, lon float64, address string) []messaging_api.MessageInterface
}

// FollowHandler is implemented by modules that track follow and unfollow events.
// The LINE user ID is available through ctxutil.GetUserID.
type FollowHandler interface {
	HandleFollow(ctx context.Context) []messaging_api.MessageInterface
	HandleUnfollow(ctx context.Context)
}
