// Package bot provides the core bot logic and message processing.
package bot

import (
	"cmp"
	"slices"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// span is a rune range [start, end) inside the message text.
type span struct{ start, end int }

// selfMentions returns the ranges where the bot itself is mentioned, clamped to
// textLen and ordered from last to first.
func selfMentions(mention *webhook.Mention, textLen int) []span {
	if mention == nil {
		return nil
	}
	var spans []span
	for _, m := range mention.Mentionees {
		um, ok := m.(webhook.UserMentionee)
		if !ok || !um.IsSelf {
			continue
		}
		s := span{start: max(int(um.Index), 0), end: min(int(um.Index+um.Length), textLen)}
		if s.start < s.end {
			spans = append(spans, s)
		}
	}
	slices.SortFunc(spans, func(a, b span) int { return cmp.Compare(b.start, a.start) })
	return spans
}

// AddressesBot reports whether a group message mentions the bot. @All does not count.
func AddressesBot(msg webhook.TextMessageContent) bool {
	if msg.Mention == nil {
		return false
	}
	return slices.ContainsFunc(msg.Mention.Mentionees, func(m webhook.MentioneeInterface) bool {
		um, ok := m.(webhook.UserMentionee)
		return ok && um.IsSelf
	})
}

// mentionQuery cuts the bot's mentions out of a group message and returns the
// remaining place query with whitespace collapsed. ok is false when the bot was
// not mentioned, in which case the message is not meant for us.
//
// Mention offsets are rune indexes, so cutting runs back to front.
func mentionQuery(msg webhook.TextMessageContent) (query string, ok bool) {
	if !AddressesBot(msg) {
		return "", false
	}
	runes := []rune(msg.Text)
	for _, s := range selfMentions(msg.Mention, len(runes)) {
		if s.start >= len(runes) {
			continue
		}
		runes = append(runes[:s.start], runes[min(s.end, len(runes)):]...)
	}
	return strings.Join(strings.Fields(string(runes)), " "), true
}
