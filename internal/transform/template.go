package transform

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/nhle/feed2imap/internal/model"
)

//go:embed assets/message.css
var messageCSS string

//go:embed assets/message.html
var messageHTML string

var messageTemplate = template.Must(template.New("message").Parse(messageHTML))

type templateData struct {
	Style     template.CSS
	Content   template.HTML
	LinkHref  string
	LinkTitle string
}

// WrapInTemplate embeds content in the message skeleton: the fixed
// stylesheet, the entry body, and a "Links" section pointing at the
// article. Without a link the href is the literal "none".
func WrapInTemplate(content string, link model.Link, hasLink bool) (string, error) {
	href := noLinkHref
	if hasLink && link.Href != "" {
		href = link.Href
	}
	title := link.Title
	if title == "" {
		title = href
	}

	var buf bytes.Buffer
	err := messageTemplate.Execute(&buf, templateData{
		Style:     template.CSS(messageCSS),
		Content:   template.HTML(content),
		LinkHref:  href,
		LinkTitle: title,
	})
	if err != nil {
		return "", fmt.Errorf("rendering message template: %w", err)
	}
	return buf.String(), nil
}
