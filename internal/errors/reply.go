package errors

import (
	"errors"
	"fmt"
)

// ReplyError is a failure that already knows what to tell the LINE user.
// Op names where it happened, e.g. "weather.preset", for logs.
type ReplyError struct {
	Op    string
	Reply string
	Err   error
}

// WithReply attaches a user-facing reply to err. It returns nil for a nil err.
func WithReply(op string, err error, reply string) error {
	if err == nil {
		return nil
	}
	return &ReplyError{Op: op, Reply: reply, Err: err}
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

// ReplyFor returns the reply of the outermost ReplyError in err's chain, or
// fallback so raw error text never reaches the chat.
func ReplyFor(err error, fallback string) string {
	var re *ReplyError
	if errors.As(err, &re) && re.Reply != "" {
		return re.Reply
	}
	return fallback
}
