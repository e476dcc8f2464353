package notification

import (
	"net/url"
	"strings"
)

// DeepLink is the canonical in-app path for a note: /?note=<id>, or / without one.
func DeepLink(noteID string) string {
	if noteID == "" {
		return "/"
	}
	return "/?note=" + url.QueryEscape(noteID)
}

// AbsoluteLink joins an origin such as https://gorev.app with DeepLink(noteID).
func AbsoluteLink(origin, noteID string) string {
	return strings.TrimRight(origin, "/") + DeepLink(noteID)
}
