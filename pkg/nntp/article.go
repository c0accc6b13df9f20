package nntp

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Article is one posting: the five required headers plus the logical body.
// No custom X- headers are ever attached; nothing in the header block may
// encode identity or folder information.
type Article struct {
	MessageID  string
	Subject    string
	From       string
	Newsgroups []string
	Date       time.Time
	Body       []byte
}

// DefaultFrom is used when the caller does not configure a From header.
const DefaultFrom = "poster <poster@ngPost.com>"

// ContentType is the declared body type. Bodies are yEnc-armored binary on
// the wire.
const ContentType = "application/octet-stream"

// Validate checks that the article carries everything a server requires.
func (a *Article) Validate() error {
	switch {
	case a.MessageID == "":
		return &Error{Kind: KindPermanent, Message: "article missing Message-ID"}
	case a.Subject == "":
		return &Error{Kind: KindPermanent, Message: "article missing Subject"}
	case len(a.Newsgroups) == 0:
		return &Error{Kind: KindPermanent, Message: "article missing Newsgroups"}
	case len(a.Body) == 0:
		return &Error{Kind: KindPermanent, Message: "article has empty body"}
	}
	return nil
}

// headerBlock renders the header lines in posting order. Date defaults to
// the current time, From to DefaultFrom.
func (a *Article) headerBlock() string {
	from := a.From
	if from == "" {
		from = DefaultFrom
	}
	date := a.Date
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "Newsgroups: %s\r\n", strings.Join(a.Newsgroups, ","))
	fmt.Fprintf(&b, "Subject: %s\r\n", a.Subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", a.MessageID)
	fmt.Fprintf(&b, "Date: %s\r\n", date.UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Content-Type: %s\r\n", ContentType)
	return b.String()
}

// parseHeaderBlock builds a Header map from textproto MIME-style lines.
func parseHeaderBlock(lines []string) Header {
	h := make(Header, len(lines))
	var lastKey string
	for _, line := range lines {
		if line == "" {
			continue
		}
		// Continuation lines start with whitespace.
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			h[lastKey] += " " + strings.TrimSpace(line)
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		lastKey = textprotoCanonical(key)
		h[lastKey] = strings.TrimSpace(value)
	}
	return h
}

// splitLines splits on CRLF or bare LF.
func splitLines(data []byte) []string {
	var lines []string
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			lines = append(lines, string(data))
			break
		}
		line := data[:idx]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		lines = append(lines, string(line))
		data = data[idx+1:]
	}
	return lines
}

// textprotoCanonical mirrors textproto.CanonicalMIMEHeaderKey for the few
// headers this package touches.
func textprotoCanonical(key string) string {
	key = strings.TrimSpace(key)
	parts := strings.Split(key, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	out := strings.Join(parts, "-")
	// Message-ID is canonically cased with an uppercase ID.
	if strings.EqualFold(out, "Message-Id") {
		return "Message-ID"
	}
	return out
}
