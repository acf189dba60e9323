package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToPlaintext(t *testing.T) {
	tests := []struct {
		name             string
		html             string
		withoutQuotation bool
		want             string
	}{
		{
			name: "paragraphs and breaks",
			html: "<p>Hello</p><div>line one<br>line two</div>",
			want: "Hello\nline one\nline two\n",
		},
		{
			name: "collapses whitespace",
			html: "<p>a    b \t c</p>",
			want: "a b c\n",
		},
		{
			name: "keeps pre",
			html: "<pre>a    b\n  c</pre>",
			want: "a    b\n  c\n",
		},
		{
			name: "list items",
			html: "<ul><li>one</li><li>two</li></ul>",
			want: "one\ntwo\n",
		},
		{
			name: "quotes blockquote",
			html: "<p>reply</p><blockquote><p>original</p></blockquote>",
			want: "reply\n> original\n> ",
		},
		{
			name:             "drops trailing quotation",
			html:             "<blockquote>first</blockquote><p>reply</p><blockquote>second</blockquote>",
			withoutQuotation: true,
			want:             "> firstreply\n",
		},
		{
			name: "head excluded",
			html: "<html><head><title>T</title></head><body>b</body></html>",
			want: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTMLToPlaintext(tt.html, tt.withoutQuotation)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlainText_PrefersTextPart(t *testing.T) {
	got, err := PlainText(&Message{TextBody: "plain", HTMLBody: "<p>html</p>"})
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	got, err = PlainText(&Message{HTMLBody: "<p>html</p>"})
	require.NoError(t, err)
	assert.Equal(t, "html\n", got)

	got, err = PlainText(&Message{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
