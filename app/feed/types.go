package feed

import (
	"time"
)

// Document is the normalized form of a parsed feed.
type Document struct {
	Title       string
	Link        string
	Description string
	ImageURL    string
	Language    string
	PublishedAt *time.Time
	Items       []Item
}

// Item is a normalized feed entry. PublishedAt stays zero when the feed
// carries no usable date; the storage layer substitutes ingestion time on
// first insert.
type Item struct {
	GUID        string
	Link        string
	Title       string
	Body        string
	Author      string
	ImageURL    string
	PublishedAt time.Time
	Fingerprint string
}
