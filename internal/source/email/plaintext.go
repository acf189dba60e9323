package email

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	whitespaceRun = regexp.MustCompile(`\s\s+`)
	blankText     = regexp.MustCompile(`^\s+$`)
)

// PlainText returns the plain text body of m, converting the HTML body
// when the message has no text/plain part.
func PlainText(m *Message) (string, error) {
	if m.TextBody != "" {
		return m.TextBody, nil
	}
	if m.HTMLBody == "" {
		return "", nil
	}
	return HTMLToPlaintext(m.HTMLBody, false)
}

// Extractor adapts PlainText to the mapper's text extraction contract.
type Extractor struct{}

// PlainText returns the plain text body of m.
func (Extractor) PlainText(m *Message) (string, error) {
	return PlainText(m)
}

// HTMLToPlaintext renders the body of an HTML document as text. Line
// breaks follow block elements, quoted parts are prefixed with "> " and
// whitespace runs are collapsed outside <pre>. With withoutQuotation the
// last blockquote at each level is dropped.
func HTMLToPlaintext(src string, withoutQuotation bool) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	root := findBody(doc)
	if root == nil {
		root = doc
	}
	return nodeText(root, withoutQuotation, false), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func nodeText(n *html.Node, withoutQuotation, inPre bool) string {
	switch n.Type {
	case html.TextNode:
		if inPre {
			return n.Data
		}
		text := whitespaceRun.ReplaceAllString(n.Data, " ")
		return blankText.ReplaceAllString(text, "")

	case html.ElementNode, html.DocumentNode:
	default:
		return ""
	}

	prefix, suffix := "", ""
	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "br":
			return "\n"
		case "pre":
			inPre = true
			suffix = "\n"
		case "h0", "h1", "h2", "h3", "h4", "h5", "p", "div", "li":
			suffix = "\n"
		case "blockquote":
			if withoutQuotation {
				return ""
			}
			prefix = "> "
		}
	}

	// Children are visited last to first so that only the trailing
	// quotation is dropped.
	var parts []string
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		parts = append(parts, nodeText(c, withoutQuotation, inPre))
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "blockquote") {
			withoutQuotation = false
		}
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(parts[i])
	}
	contents := b.String()

	if prefix != "" {
		lines := strings.Split(contents, "\n")
		for i, line := range lines {
			lines[i] = prefix + line
		}
		contents = strings.Join(lines, "\n")
	}
	return contents + suffix
}
