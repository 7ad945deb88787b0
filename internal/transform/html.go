package transform

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RewriteRelativeLinks resolves the src attribute of every <img> in content
// against baseURL. Attribute values arrive entity-decoded from the parser
// and are re-escaped on render. A src that does not parse as a URL is
// logged and kept as is. Content without images that need rewriting is
// returned untouched.
func RewriteRelativeLinks(logger *slog.Logger, baseURL, content string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return content, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}

	parent := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(content), parent)
	if err != nil {
		return content, fmt.Errorf("parsing html: %w", err)
	}

	changed := false
	for _, n := range nodes {
		walk(n, func(el *html.Node) {
			if el.Type != html.ElementNode || el.DataAtom != atom.Img {
				return
			}
			for i, attr := range el.Attr {
				if attr.Namespace != "" || attr.Key != "src" || strings.TrimSpace(attr.Val) == "" {
					continue
				}
				ref, err := url.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					logger.Error("could not parse img src",
						slog.String("src", attr.Val),
						slog.String("error", err.Error()),
					)
					continue
				}
				resolved := base.ResolveReference(ref).String()
				if resolved != attr.Val {
					el.Attr[i].Val = resolved
					changed = true
				}
			}
		})
	}
	if !changed {
		return content, nil
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return content, fmt.Errorf("rendering html: %w", err)
		}
	}
	return buf.String(), nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// NewSanitizer returns the policy applied to entry bodies when sanitizing
// is enabled. Relative URLs survive so they can still be resolved.
func NewSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowRelativeURLs(true)
	p.AllowAttrs("width", "height", "title").OnElements("img")
	return p
}
