package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/language"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Document, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	doc := &Document{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    normalizeLanguage(parsed.Language),
	}

	if parsed.Image != nil {
		doc.ImageURL = parsed.Image.URL
	}

	if parsed.PublishedParsed != nil {
		doc.PublishedAt = parsed.PublishedParsed
	}

	doc.Items = make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		normalized := p.normalizeItem(item)
		normalized.Fingerprint = Fingerprint(normalized.Title, normalized.Link, normalized.Body)
		doc.Items = append(doc.Items, normalized)
	}

	return doc, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:  cmp.Or(item.GUID, item.Link),
		Title: item.Title,
		Link:  item.Link,
		Body:  cmp.Or(item.Content, item.Description),
	}

	if item.Image != nil {
		normalized.ImageURL = item.Image.URL
	}

	switch {
	case item.PublishedParsed != nil:
		normalized.PublishedAt = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		normalized.PublishedAt = *item.UpdatedParsed
	case item.Published != "":
		// gofeed gives up on non-standard date formats; dateparse covers most
		if t, err := dateparse.ParseAny(item.Published); err == nil {
			normalized.PublishedAt = t
		}
	}

	normalized.Author = p.extractAuthor(item)

	return normalized
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				if authorStr := p.formatAuthor(author.Name, author.Email); authorStr != "" {
					authors = append(authors, authorStr)
				}
			}
		}
	} else if item.Author != nil {
		if authorStr := p.formatAuthor(item.Author.Name, item.Author.Email); authorStr != "" {
			authors = append(authors, authorStr)
		}
	}

	return strings.Join(authors, ", ")
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", name, email)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}

// normalizeLanguage canonicalizes feed language declarations ("EN-us",
// "en_US", "english") into BCP 47 tags; unparseable values pass through.
func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}

	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}

	return tag.String()
}
