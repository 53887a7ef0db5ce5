package lineutil

import (
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

func TestNewMessageAction(t *testing.T) {
	action := NewMessageAction("臺北市信義區", "臺北市信義區")
	msgAction, ok := action.(*messaging_api.MessageAction)
	if !ok {
		t.Fatal("Expected *messaging_api.MessageAction")
	}
	if msgAction.Label != "臺北市信義區" || msgAction.Text != "臺北市信義區" {
		t.Errorf("unexpected action %+v", msgAction)
	}
}

func TestNewMessageAction_TruncatesLabel(t *testing.T) {
	long := strings.Repeat("長", 30)
	msgAction := NewMessageAction(long, long).(*messaging_api.MessageAction)

	if got := len([]rune(msgAction.Label)); got != MaxQuickReplyLabel {
		t.Errorf("label has %d runes, want %d", got, MaxQuickReplyLabel)
	}
	if msgAction.Text != long {
		t.Error("message text must not be truncated")
	}
}

func TestNewPostbackAction(t *testing.T) {
	data := "action=other&type=announcements"

	pbAction, ok := NewPostbackAction("📢 公告", "查看公告", data).(*messaging_api.PostbackAction)
	if !ok {
		t.Fatal("Expected *messaging_api.PostbackAction")
	}
	if pbAction.Data != data {
		t.Errorf("Expected data %q, got %q", data, pbAction.Data)
	}
	if pbAction.DisplayText != "查看公告" {
		t.Errorf("DisplayText = %q", pbAction.DisplayText)
	}
}

func TestLocationPicker(t *testing.T) {
	loc, ok := LocationPicker().(*messaging_api.LocationAction)
	if !ok {
		t.Fatalf("Expected *messaging_api.LocationAction, got %T", LocationPicker())
	}
	if loc.Label != "開啟地圖選擇" {
		t.Errorf("Label = %q", loc.Label)
	}
}

func TestPlaceChoices(t *testing.T) {
	actions := PlaceChoices("新北市永和區", "臺南市永康區")
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	second := actions[1].(*messaging_api.MessageAction)
	if second.Label != "臺南市永康區" || second.Text != "臺南市永康區" {
		t.Errorf("unexpected action %+v", second)
	}
	if len(PlaceChoices()) != 0 {
		t.Error("no names should give no actions")
	}
}

func TestNewTextMessage_ClampsLength(t *testing.T) {
	msg := NewTextMessage(strings.Repeat("雨", MaxTextMessageLength+10))

	runes := []rune(msg.Text)
	if len(runes) != MaxTextMessageLength {
		t.Errorf("text has %d runes, want %d", len(runes), MaxTextMessageLength)
	}
	if !strings.HasSuffix(msg.Text, "...") {
		t.Error("truncated text should end with ellipsis")
	}
	if msg.Sender != nil {
		t.Error("plain text message should have no sender")
	}
}

func TestNewTextMessageWithQuickReply(t *testing.T) {
	sender := NewSender("天氣小幫手", "")

	msg := NewTextMessageWithQuickReply("請選擇", sender, LocationPicker())
	if msg.Sender != sender {
		t.Error("sender not applied")
	}
	if msg.QuickReply == nil || len(msg.QuickReply.Items) != 1 {
		t.Fatalf("QuickReply = %+v", msg.QuickReply)
	}

	plain := NewTextMessageWithQuickReply("沒有選項", sender)
	if plain.QuickReply != nil {
		t.Error("no actions should leave QuickReply nil")
	}

	names := make([]string, 20)
	for i := range names {
		names[i] = strings.Repeat("區", i+1)
	}
	capped := NewTextMessageWithQuickReply("太多了", sender, PlaceChoices(names...)...)
	if got := len(capped.QuickReply.Items); got != MaxQuickReplyItemCount {
		t.Errorf("got %d items, want %d", got, MaxQuickReplyItemCount)
	}
}

func TestNewSender(t *testing.T) {
	if NewSender("", "https://example.com/icon.png") != nil {
		t.Error("empty name should return nil sender")
	}

	s := NewSender(strings.Repeat("名", 25), "")
	if got := len([]rune(s.Name)); got != MaxSenderNameLength {
		t.Errorf("name has %d runes, want %d", got, MaxSenderNameLength)
	}
}

func TestErrorMessageWithSender(t *testing.T) {
	msg := ErrorMessageWithSender(nil).(*messaging_api.TextMessage)
	if msg.Text != MsgSystemBusy {
		t.Errorf("Text = %q", msg.Text)
	}
}
