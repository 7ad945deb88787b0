package fetch

import (
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"

	"github.com/nhle/feed2imap/internal/model"
)

// atomIDKey is where atomTranslator stores the Atom feed <id>, which the
// default translator drops.
const atomIDKey = "feed2imap:atom-id"

type atomTranslator struct {
	gofeed.DefaultAtomTranslator
}

func (t *atomTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	out, err := t.DefaultAtomTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}
	if af, ok := feed.(*atom.Feed); ok && strings.TrimSpace(af.ID) != "" {
		if out.Custom == nil {
			out.Custom = make(map[string]string)
		}
		out.Custom[atomIDKey] = strings.TrimSpace(af.ID)
	}
	return out, nil
}

func convertFeed(url string, src *gofeed.Feed) *model.Feed {
	feed := &model.Feed{
		ID:      firstNonEmpty(src.Custom[atomIDKey], src.Link, url),
		Title:   strings.TrimSpace(src.Title),
		URL:     url,
		BaseURL: firstNonEmpty(src.Link, url),
		Authors: convertPeople(src.Authors),
		Links:   convertLinks(src.Link, src.Links),
		Entries: make([]model.Entry, 0, len(src.Items)),
	}

	for _, item := range src.Items {
		if item == nil {
			continue
		}
		feed.Entries = append(feed.Entries, convertItem(item))
	}
	return feed
}

func convertItem(item *gofeed.Item) model.Entry {
	entry := model.Entry{
		ID:      firstNonEmpty(item.GUID, item.Link, item.Title),
		Title:   strings.TrimSpace(item.Title),
		Content: item.Content,
		Summary: item.Description,
		Links:   convertLinks(item.Link, item.Links),
		Authors: convertPeople(item.Authors),
	}
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		entry.Published = &t
	}
	if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		entry.Updated = &t
	}
	if len(entry.Links) > 0 {
		entry.BaseURL = entry.Links[0].Href
	}
	return entry
}

func convertPeople(people []*gofeed.Person) []model.Person {
	if len(people) == 0 {
		return nil
	}
	out := make([]model.Person, 0, len(people))
	for _, p := range people {
		if p == nil {
			continue
		}
		out = append(out, model.Person{
			Name:  strings.TrimSpace(p.Name),
			Email: strings.TrimSpace(p.Email),
		})
	}
	return out
}

// convertLinks puts primary first and drops duplicates of it from rest.
func convertLinks(primary string, rest []string) []model.Link {
	var out []model.Link
	seen := make(map[string]bool)
	for _, href := range append([]string{primary}, rest...) {
		href = strings.TrimSpace(href)
		if href == "" || seen[href] {
			continue
		}
		seen[href] = true
		out = append(out, model.Link{Href: href})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
