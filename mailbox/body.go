package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
)

var (
	ErrEmptyMessage = errors.New("mailbox: empty message")
	ErrNoTextBody   = errors.New("mailbox: message has no text body")
)

// DecodeBody returns the first text/plain part of a raw message. Without
// one, the first text/html part is rendered to plain text.
func DecodeBody(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", ErrEmptyMessage
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("mailbox: parse message: %w", err)
	}
	defer mr.Close()

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && (!message.IsUnknownCharset(err) || p == nil) {
			return "", fmt.Errorf("mailbox: read part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct := "text/plain"
		if h.Get("Content-Type") != "" {
			if ct, _, err = h.ContentType(); err != nil {
				continue
			}
		}
		if ct != "text/plain" && ct != "text/html" {
			continue
		}

		b, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("mailbox: read part body: %w", err)
		}
		if ct == "text/plain" && plain == "" {
			plain = string(b)
		}
		if ct == "text/html" && html == "" {
			html = string(b)
		}
	}

	if strings.TrimSpace(plain) != "" {
		return normalizeSpace(plain), nil
	}
	if strings.TrimSpace(html) != "" {
		return normalizeSpace(html2text.HTML2Text(html)), nil
	}
	return "", ErrNoTextBody
}

// normalizeSpace turns non-breaking spaces into plain ones.
func normalizeSpace(s string) string {
	return strings.ReplaceAll(s, "\u00a0", " ")
}
