package email

import (
	"strings"
	"time"
)

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	UID       uint32
}

// Header is one decoded message header field.
type Header struct {
	Name  string
	Value string
}

// Message is a parsed mail message. Headers keeps the order in which
// fields appear in the message.
type Message struct {
	// Folder is the mailbox the message was read from, empty for files.
	Folder string
	UID    uint32

	MessageID   string
	Subject     string
	Date        time.Time
	Headers     []Header
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Header returns the first value of the named header. Names are
// matched case-insensitively.
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Attachment is a non-inline part of a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
