package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// NewSender creates the sender shown as the avatar of bot replies. An empty name
// returns nil so the channel's default profile is used.
func NewSender(name, iconURL string) *messaging_api.Sender {
	if name == "" {
		return nil
	}
	return &messaging_api.Sender{
		Name:    TruncateRunes(name, MaxSenderNameLength),
		IconUrl: iconURL,
	}
}

// NewTextMessageWithSender is a text reply shown under sender. Text over the
// LINE limit is truncated.
func NewTextMessageWithSender(text string, sender *messaging_api.Sender) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{
		Text:   TruncateRunes(text, MaxTextMessageLength),
		Sender: sender,
	}
}

// ErrorMessageWithSender creates the generic "try again later" reply.
func ErrorMessageWithSender(sender *messaging_api.Sender) messaging_api.MessageInterface {
	return NewTextMessageWithSender(MsgSystemBusy, sender)
}

// MsgSystemBusy is the reply for unexpected failures. Details stay in the logs.
const MsgSystemBusy = "系統暫時有點忙，請稍後再試一次。"

// MsgTooFrequent is the reply when a user is rate limited or already has a request in flight.
const MsgTooFrequent = "操作太過頻繁，請放慢腳步 ☕️"
