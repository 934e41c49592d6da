package pipeline

import (
	"net/url"
	"strings"
)

// Mail-client link builder. Link shapes are bit-exact contract with the
// client; every id and query is URL-encoded.

const mailBaseURL = "https://mail.google.com/mail/u/0/"

// ThreadLink returns the link to a thread.
func ThreadLink(threadID string) string {
	return mailBaseURL + "#inbox/" + url.PathEscape(threadID)
}

// MessageLink returns the link to a single message.
func MessageLink(messageID string) string {
	return mailBaseURL + "#inbox/" + url.PathEscape(messageID)
}

// SearchLink returns a search link for the given query.
func SearchLink(query string) string {
	return mailBaseURL + "#search/" + url.QueryEscape(query)
}

// LabelLink returns a link to a label. Slashes inside label names are
// encoded as %2F.
func LabelLink(label string) string {
	escaped := url.PathEscape(label)
	escaped = strings.ReplaceAll(escaped, "/", "%2F")
	return mailBaseURL + "#label/" + escaped
}

// BestLink prefers the thread link, then the message link, then a search
// on the subject.
func BestLink(threadID, messageID, subject string) string {
	if threadID != "" {
		return ThreadLink(threadID)
	}
	if messageID != "" {
		return MessageLink(messageID)
	}
	return SearchLink(subject)
}
