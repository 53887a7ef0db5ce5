package bot

import (
	"context"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Registry routes events to modules. Capabilities are indexed when a module
// registers, so dispatch does no type assertions.
type Registry struct {
	text      []Handler          // consulted in registration order
	postbacks map[string]Handler // postback action -> owner
	location  LocationHandler    // first registered wins
	follow    []FollowHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{postbacks: make(map[string]Handler)}
}

// Register adds a module. Two modules claiming the same postback action is a
// wiring bug and panics, like a duplicate http.ServeMux pattern.
func (r *Registry) Register(h Handler) {
	for _, action := range h.PostbackActions() {
		if owner, ok := r.postbacks[action]; ok {
			panic(fmt.Sprintf("bot: postback action %q claimed by both %s and %s", action, owner.Name(), h.Name()))
		}
		r.postbacks[action] = h
	}
	r.text = append(r.text, h)
	if lh, ok := h.(LocationHandler); ok && r.location == nil {
		r.location = lh
	}
	if fh, ok := h.(FollowHandler); ok {
		r.follow = append(r.follow, fh)
	}
}

// DispatchMessage gives text to the first module that wants it.
func (r *Registry) DispatchMessage(ctx context.Context, text string) []messaging_api.MessageInterface {
	for _, h := range r.text {
		if h.CanHandle(text) {
			return h.HandleMessage(ctx, text)
		}
	}
	return nil
}

// DispatchPostback hands pb to the module owning its action. The boolean is
// false when nobody owns it.
func (r *Registry) DispatchPostback(ctx context.Context, pb Postback) ([]messaging_api.MessageInterface, bool) {
	h, ok := r.postbacks[pb.Action]
	if !ok {
		return nil, false
	}
	return h.HandlePostback(ctx, pb), true
}

// DispatchLocation answers a shared location, or returns nil when no module
// understands locations.
func (r *Registry) DispatchLocation(ctx context.Context, lat, lon float64, address string) []messaging_api.MessageInterface {
	if r.location == nil {
		return nil
	}
	return r.location.HandleLocation(ctx, lat, lon, address)
}

// DispatchFollow collects the welcome replies of every FollowHandler.
func (r *Registry) DispatchFollow(ctx context.Context) []messaging_api.MessageInterface {
	var msgs []messaging_api.MessageInterface
	for _, fh := range r.follow {
		msgs = append(msgs, fh.HandleFollow(ctx)...)
	}
	return msgs
}

// DispatchUnfollow notifies every FollowHandler.
func (r *Registry) DispatchUnfollow(ctx context.Context) {
	for _, fh := range r.follow {
		fh.HandleUnfollow(ctx)
	}
}
