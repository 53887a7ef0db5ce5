package bot

import (
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/stretchr/testify/assert"
)

func selfMention(index, length int32) webhook.MentioneeInterface {
	return webhook.UserMentionee{Index: index, Length: length, IsSelf: true}
}

func mentioning(text string, mentionees ...webhook.MentioneeInterface) webhook.TextMessageContent {
	return webhook.TextMessageContent{Text: text, Mention: &webhook.Mention{Mentionees: mentionees}}
}

func TestAddressesBot(t *testing.T) {
	tests := []struct {
		name string
		msg  webhook.TextMessageContent
		want bool
	}{
		{"no mention", webhook.TextMessageContent{Text: "永和區"}, false},
		{"bot mentioned", mentioning("@天氣 永和區", selfMention(0, 3)), true},
		{"someone else mentioned", mentioning("@小明 永和區", webhook.UserMentionee{Index: 0, Length: 3, UserId: "U1"}), false},
		{"everyone mention", mentioning("@All 永和區", webhook.AllMentionee{Index: 0, Length: 4}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddressesBot(tt.msg))
		})
	}
}

func TestMentionQuery(t *testing.T) {
	tests := []struct {
		name   string
		msg    webhook.TextMessageContent
		want   string
		wantOK bool
	}{
		{"not addressed", webhook.TextMessageContent{Text: " 永和區 "}, "", false},
		{"leading mention", mentioning("@天氣 永和區", selfMention(0, 3)), "永和區", true},
		{"mention in the middle", mentioning("查 @天氣 永和區", selfMention(2, 3)), "查 永和區", true},
		{"two bot mentions", mentioning("@天氣 永和區 @天氣", selfMention(0, 3), selfMention(8, 3)), "永和區", true},
		{
			"other mentions stay",
			mentioning("@小明 @天氣 板橋", webhook.UserMentionee{Index: 0, Length: 3, UserId: "U1"}, selfMention(4, 3)),
			"@小明 板橋",
			true,
		},
		{"out of range length is clamped", mentioning("@天氣", selfMention(0, 99)), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mentionQuery(tt.msg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		name   string
		source webhook.SourceInterface
		want   Origin
	}{
		{"user", webhook.UserSource{UserId: "U1"}, Origin{UserID: "U1", ChatID: "U1", Personal: true}},
		{"group", webhook.GroupSource{GroupId: "C1", UserId: "U1"}, Origin{UserID: "U1", ChatID: "C1"}},
		{"room without user", webhook.RoomSource{RoomId: "R1"}, Origin{ChatID: "R1"}},
		{"nil", nil, Origin{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OriginOf(tt.source))
		})
	}
}
