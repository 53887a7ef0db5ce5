package bot

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Postback keys shared by rich menu buttons and quick replies.
const (
	PostbackKeyAction = "action"
	PostbackKeyType   = "type"
)

// Postback is a parsed postback payload.
// Format: "action=weather&type=home" (URL query string)
type Postback struct {
	Action string
	Type   string
	Values url.Values
}

// Get returns the first value for key, or "" when absent.
func (p Postback) Get(key string) string {
	return p.Values.Get(key)
}

// ParsePostback parses postback data into a Postback.
// Only the first value of a repeated key is used.
func ParsePostback(data string) (Postback, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Postback{}, errors.New("empty postback data")
	}

	values, err := url.ParseQuery(data)
	if err != nil {
		return Postback{}, fmt.Errorf("invalid postback format: %w", err)
	}

	action := values.Get(PostbackKeyAction)
	if action == "" {
		return Postback{}, errors.New("invalid postback format: missing action")
	}

	return Postback{
		Action: action,
		Type:   values.Get(PostbackKeyType),
		Values: values,
	}, nil
}

// BuildPostback encodes action and type (type may be empty) as postback data.
func BuildPostback(action, typ string) string {
	values := url.Values{}
	values.Set(PostbackKeyAction, action)
	if typ != "" {
		values.Set(PostbackKeyType, typ)
	}
	return values.Encode()
}
