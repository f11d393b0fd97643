package apperr

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultMessage is shown when nothing better can be extracted from an error.
const DefaultMessage = "Đã có lỗi xảy ra, vui lòng thử lại sau."

type Kind string

const (
	KindServerMessage Kind = "server-message"
	KindGeneric       Kind = "generic"
	KindFallback      Kind = "fallback"
)

type Classification struct {
	Kind    Kind
	Message string
}

// ServerMessager is implemented by errors that carry a message supplied by
// the backend in the response body.
type ServerMessager interface {
	ServerMessage() string
}

// Classify picks the most specific message available: a server supplied
// message, then the error text, then nothing.
func Classify(err error) (c Classification) {
	defer func() {
		if recover() != nil {
			c = Classification{Kind: KindFallback}
		}
	}()

	if err == nil {
		return Classification{Kind: KindFallback}
	}

	var sm ServerMessager
	if errors.As(err, &sm) {
		if msg := strings.TrimSpace(sm.ServerMessage()); msg != "" {
			return Classification{Kind: KindServerMessage, Message: msg}
		}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return Classification{Kind: KindGeneric, Message: msg}
	}

	return Classification{Kind: KindFallback}
}

// Message returns a displayable message for err, using fallback (or
// DefaultMessage when fallback is empty) as the last resort.
func Message(err error, fallback string) string {
	c := Classify(err)
	if c.Kind != KindFallback {
		return c.Message
	}
	if fallback != "" {
		return fallback
	}
	return DefaultMessage
}
