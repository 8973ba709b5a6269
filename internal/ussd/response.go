package ussd

import "strings"

const (
	prefixContinue = "CON "
	prefixEnd      = "END "
)

// Request is one gateway round-trip. Text is the full "*"-joined keypress
// history of the dial-in, empty on the first request.
type Request struct {
	SessionID   string
	ServiceCode string
	Phone       string
	Text        string
}

// Response is what the caller sees next. End terminates the dial-in.
type Response struct {
	End  bool
	Text string
}

func Continue(text string) Response { return Response{Text: text} }
func End(text string) Response      { return Response{End: true, Text: text} }

// String renders the wire body expected by Africa's Talking style gateways.
func (r Response) String() string {
	if r.End {
		return prefixEnd + r.Text
	}
	return prefixContinue + r.Text
}

// ParseResponse is the inverse of String. Bodies without a known prefix are
// treated as terminal.
func ParseResponse(body string) Response {
	switch {
	case strings.HasPrefix(body, prefixContinue):
		return Continue(strings.TrimPrefix(body, prefixContinue))
	case strings.HasPrefix(body, prefixEnd):
		return End(strings.TrimPrefix(body, prefixEnd))
	default:
		return End(body)
	}
}
