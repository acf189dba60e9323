package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

const multipartMessage = `Message-ID: <abc@example.com>
Subject: =?UTF-8?B?UmU6IENhZsOp?=
From: Alice <alice@example.com>
To: ops@example.com
Date: Tue, 13 Oct 2026 09:30:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=utf-8

The server is down.
--inner
Content-Type: text/html; charset=utf-8

<p>The server is <b>down</b>.</p>
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="report.pdf"
Content-Transfer-Encoding: base64

UERGLURBVEE=
--outer--
`

func TestParse_Multipart(t *testing.T) {
	msg, err := Parse(strings.NewReader(crlf(multipartMessage)))
	require.NoError(t, err)

	assert.Equal(t, "abc@example.com", msg.MessageID)
	assert.Equal(t, "Re: Café", msg.Subject)
	assert.Equal(t, 2026, msg.Date.Year())
	assert.Equal(t, "The server is down.", strings.TrimSpace(msg.TextBody))
	assert.Contains(t, msg.HTMLBody, "<b>down</b>")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "report.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, "PDF-DATA", string(msg.Attachments[0].Data))

	subject, ok := msg.Header("subject")
	require.True(t, ok)
	assert.Equal(t, "Re: Café", subject)

	from, ok := msg.Header("From")
	require.True(t, ok)
	assert.Equal(t, "Alice <alice@example.com>", from)

	_, ok = msg.Header("Cc")
	assert.False(t, ok)
}

func TestParse_HeaderOrder(t *testing.T) {
	msg, err := Parse(strings.NewReader(crlf(multipartMessage)))
	require.NoError(t, err)

	var names []string
	for _, h := range msg.Headers {
		names = append(names, strings.ToLower(h.Name))
	}
	assert.Equal(t, []string{
		"message-id", "subject", "from", "to", "date", "mime-version", "content-type",
	}, names)
}

func TestParse_SinglePart(t *testing.T) {
	raw := crlf("Subject: hello\nContent-Type: text/plain\n\nbody text\n")
	msg, err := ParseBytes([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "hello", msg.Subject)
	assert.Equal(t, "body text\r\n", msg.TextBody)
	assert.Empty(t, msg.Attachments)
}
