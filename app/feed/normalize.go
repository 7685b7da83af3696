package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// NormalizeText strips markup, lowercases and collapses whitespace so that
// cosmetic reformatting of an entry does not change its identity.
func NormalizeText(s string) string {
	s = stripPolicy.Sanitize(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint derives the deduplication identity of an item. The body is the
// primary identity so that publishers fixing a headline update the stored
// item in place; title and link only matter for body-less entries. Feeds that
// regenerate GUIDs on every request therefore do not produce duplicate rows.
func Fingerprint(title, link, body string) string {
	material := NormalizeText(body)
	if material == "" {
		material = NormalizeText(title) + "|" + strings.TrimSpace(link)
	}

	hash := sha256.Sum256([]byte(material))
	return hex.EncodeToString(hash[:])
}
