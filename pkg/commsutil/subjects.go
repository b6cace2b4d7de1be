package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectPrefix      = "webapps"
	SubjectObjectEvent = "webapps.objects"
)

// Per-session channel directions.
const (
	DirectionAPIMessage  = "api-message"
	DirectionHostMessage = "host-message"
)

// BuildAPIMessageSubject builds the subject carrying content-to-host messages
// for a session.
func BuildAPIMessageSubject(session string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, SanitizeToken(session), DirectionAPIMessage)
}

// BuildHostMessageSubject builds the subject carrying host-to-content
// messages for a session.
func BuildHostMessageSubject(session string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, SanitizeToken(session), DirectionHostMessage)
}

// BuildObjectEventSubject builds a granular object lifecycle subject.
func BuildObjectEventSubject(action string) string {
	return fmt.Sprintf("%s.%s", SubjectObjectEvent, SanitizeToken(action))
}

// SanitizeToken makes s usable as a single subject token.
func SanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
