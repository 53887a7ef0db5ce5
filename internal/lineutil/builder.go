// Package lineutil builds LINE Messaging API replies for the bot.
package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Action is any LINE action usable in a quick reply or button.
type Action = messaging_api.ActionInterface

// NewTextMessage is a text reply without a custom sender.
func NewTextMessage(text string) *messaging_api.TextMessage {
	return NewTextMessageWithSender(text, nil)
}

// NewTextMessageWithQuickReply attaches quick reply buttons to a text reply.
// Actions past MaxQuickReplyItemCount are dropped, and no actions means no
// quick reply at all.
func NewTextMessageWithQuickReply(text string, sender *messaging_api.Sender, actions ...Action) *messaging_api.TextMessage {
	msg := NewTextMessageWithSender(text, sender)
	if len(actions) == 0 {
		return msg
	}
	actions = actions[:min(len(actions), MaxQuickReplyItemCount)]
	items := make([]messaging_api.QuickReplyItem, 0, len(actions))
	for _, a := range actions {
		items = append(items, messaging_api.QuickReplyItem{Action: a})
	}
	msg.QuickReply = &messaging_api.QuickReply{Items: items}
	return msg
}

// PlaceChoices makes one button per place name. Tapping it sends the name as
// a new query, which resolves to exactly that place.
func PlaceChoices(names ...string) []Action {
	actions := make([]Action, 0, len(names))
	for _, name := range names {
		actions = append(actions, NewMessageAction(name, name))
	}
	return actions
}

// LocationPicker opens LINE's map so the user can share any point.
// It only works inside a quick reply.
func LocationPicker() Action {
	return &messaging_api.LocationAction{Label: "開啟地圖選擇"}
}

// NewMessageAction sends text as if the user typed it. The label is cut to fit.
func NewMessageAction(label, text string) Action {
	return &messaging_api.MessageAction{
		Label: TruncateRunes(label, MaxQuickReplyLabel),
		Text:  text,
	}
}

// NewPostbackAction sends data to the webhook and shows displayText in the chat.
func NewPostbackAction(label, displayText, data string) Action {
	return &messaging_api.PostbackAction{
		Label:       label,
		DisplayText: displayText,
		Data:        data,
	}
}

// NewURIAction opens uri.
func NewURIAction(label, uri string) Action {
	return &messaging_api.UriAction{Label: label, Uri: uri}
}

// NewFlexMessage wraps a flex container. altText is what notifications show.
func NewFlexMessage(altText string, contents messaging_api.FlexContainerInterface) *messaging_api.FlexMessage {
	return &messaging_api.FlexMessage{
		AltText:  TruncateRunes(altText, MaxAltTextLength),
		Contents: contents,
	}
}
