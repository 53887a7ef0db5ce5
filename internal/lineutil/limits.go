package lineutil

// Messaging API limits, counted in runes.
const (
	MaxTextMessageLength   = 5000
	MaxAltTextLength       = 400
	MaxSenderNameLength    = 20
	MaxQuickReplyItemCount = 13
	MaxQuickReplyLabel     = 20
)

// ellipsis marks text cut by TruncateRunes.
const ellipsis = "..."

// TruncateRunes shortens text to at most limit runes, ending in "..." when
// there is room for it. LINE counts characters, not bytes, so Chinese place
// names and emoji are never split.
func TruncateRunes(text string, limit int) string {
	runes := []rune(text)
	switch {
	case len(runes) <= limit:
		return text
	case limit <= len(ellipsis):
		return string(runes[:max(limit, 0)])
	default:
		return string(runes[:limit-len(ellipsis)]) + ellipsis
	}
}
