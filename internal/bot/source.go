package bot

import "github.com/line/line-bot-sdk-go/v8/linebot/webhook"

// Origin is where an event came from.
//
// ChatID is the reply target: the user for 1-on-1 chats, otherwise the group
// or room. UserID is the sender and may be empty in groups when the user has
// not consented to profile access.
type Origin struct {
	UserID   string
	ChatID   string
	Personal bool
}

// OriginOf flattens a webhook source. Unknown source types give a zero Origin.
func OriginOf(source webhook.SourceInterface) Origin {
	switch s := source.(type) {
	case webhook.UserSource:
		return Origin{UserID: s.UserId, ChatID: s.UserId, Personal: true}
	case webhook.GroupSource:
		return Origin{UserID: s.UserId, ChatID: s.GroupId}
	case webhook.RoomSource:
		return Origin{UserID: s.UserId, ChatID: s.RoomId}
	}
	return Origin{}
}
