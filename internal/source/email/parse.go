package email

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParseFile reads and parses an RFC 5322 message file (.eml).
func ParseFile(path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening message %s: %w", path, err)
	}
	defer f.Close()

	msg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing message %s: %w", path, err)
	}
	return msg, nil
}

// ParseBytes parses a raw RFC 5322 message.
func ParseBytes(raw []byte) (*Message, error) {
	return Parse(bytes.NewReader(raw))
}

// Parse parses a message using go-message and extracts decoded headers,
// the first text/plain and text/html bodies, and attachment contents.
func Parse(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && mr == nil {
		return nil, fmt.Errorf("reading message header: %w", err)
	}
	defer mr.Close()

	msg := &Message{}

	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		msg.Headers = append(msg.Headers, Header{Name: fields.Key(), Value: value})
	}

	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}
	if id, err := mr.Header.MessageID(); err == nil {
		msg.MessageID = id
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msg, fmt.Errorf("reading message part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain") && msg.TextBody == "":
				msg.TextBody = string(body)
			case strings.HasPrefix(contentType, "text/html") && msg.HTMLBody == "":
				msg.HTMLBody = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			msg.Attachments = append(msg.Attachments, Attachment{
				Filename:    filename,
				ContentType: contentType,
				Data:        body,
			})
		}
	}

	return msg, nil
}
