package lineutil

import (
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// CarouselPageSize is how many bubbles go into one carousel message.
const CarouselPageSize = 10

// Card is the bubble layout used for bot notices.
//
//	┌──────────────────────────┐
//	│ 📢 Badge                  │ <- Color
//	│ Title                    │
//	│ Body                     │
//	│ ───────────────────────  │
//	│ 📅 Label         Value   │ <- one per Row
//	│ [Link]                   │ <- Color
//	└──────────────────────────┘
type Card struct {
	Emoji string
	Badge string
	Color string
	Title string
	Body  string // optional
	Rows  []CardRow
	Link  Action // optional footer button
}

// CardRow is a label/value line. Rows with an empty Value are skipped.
type CardRow struct {
	Emoji string
	Label string
	Value string
}

// Bubble renders the card.
func (c Card) Bubble() *messaging_api.FlexBubble {
	header := &messaging_api.FlexBox{
		Layout: messaging_api.FlexBoxLAYOUT("baseline"),
		Contents: []messaging_api.FlexComponentInterface{
			&messaging_api.FlexText{Text: c.Emoji, Size: "md"},
			&messaging_api.FlexText{
				Text:   c.Badge,
				Weight: messaging_api.FlexTextWEIGHT("bold"),
				Color:  ColorHeroText,
				Size:   "sm",
				Margin: "sm",
			},
		},
		BackgroundColor: c.Color,
		PaddingAll:      SpacingM,
	}

	sections := []messaging_api.FlexComponentInterface{
		&messaging_api.FlexText{
			Text:   c.Title,
			Weight: messaging_api.FlexTextWEIGHT("bold"),
			Size:   "lg",
			Color:  ColorText,
			Wrap:   true,
		},
	}
	if c.Body != "" {
		sections = append(sections, &messaging_api.FlexText{
			Text:        c.Body,
			Size:        "sm",
			Color:       ColorLabel,
			Wrap:        true,
			LineSpacing: LineSpacingNormal,
		})
	}
	for _, r := range c.Rows {
		if r.Value != "" {
			sections = append(sections, infoRow(r))
		}
	}

	bubble := &messaging_api.FlexBubble{
		Header: header,
		Body: &messaging_api.FlexBox{
			Layout:   messaging_api.FlexBoxLAYOUT("vertical"),
			Contents: withSeparators(sections),
			Spacing:  "sm",
		},
	}
	if c.Link != nil {
		bubble.Footer = &messaging_api.FlexBox{
			Layout: messaging_api.FlexBoxLAYOUT("vertical"),
			Contents: []messaging_api.FlexComponentInterface{&messaging_api.FlexButton{
				Action: c.Link,
				Style:  messaging_api.FlexButtonSTYLE("primary"),
				Color:  c.Color,
				Height: messaging_api.FlexButtonHEIGHT("sm"),
			}},
		}
	}
	return bubble
}

func infoRow(r CardRow) *messaging_api.FlexBox {
	return &messaging_api.FlexBox{
		Layout: messaging_api.FlexBoxLAYOUT("horizontal"),
		Contents: []messaging_api.FlexComponentInterface{
			&messaging_api.FlexText{Text: r.Emoji, Size: "xs"},
			&messaging_api.FlexText{Text: r.Label, Color: ColorLabel, Size: "xs", Margin: "sm"},
			&messaging_api.FlexText{
				Text:  r.Value,
				Color: ColorSubtext,
				Size:  "xs",
				Align: messaging_api.FlexTextALIGN("end"),
				Wrap:  true,
			},
		},
		Spacing: "sm",
	}
}

// withSeparators puts a separator between consecutive components.
func withSeparators(parts []messaging_api.FlexComponentInterface) []messaging_api.FlexComponentInterface {
	out := make([]messaging_api.FlexComponentInterface, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, &messaging_api.FlexSeparator{Margin: "md"})
		}
		out = append(out, p)
	}
	return out
}

// CarouselMessages pages bubbles into carousels of CarouselPageSize. Later
// pages carry the bubble range in their alt text.
func CarouselMessages(altText string, bubbles []messaging_api.FlexBubble, sender *messaging_api.Sender) []messaging_api.MessageInterface {
	var messages []messaging_api.MessageInterface
	for start := 0; start < len(bubbles); start += CarouselPageSize {
		end := min(start+CarouselPageSize, len(bubbles))

		alt := altText
		if start > 0 {
			alt = fmt.Sprintf("%s (%d-%d)", altText, start+1, end)
		}
		msg := NewFlexMessage(alt, &messaging_api.FlexCarousel{Contents: bubbles[start:end]})
		msg.Sender = sender
		messages = append(messages, msg)
	}
	return messages
}
