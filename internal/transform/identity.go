// Package transform turns feed entries into self-contained HTML emails:
// identity derivation, header extraction, body rewriting and MIME
// composition. Everything here is pure apart from logging.
package transform

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/nhle/feed2imap/internal/model"
)

// IdentityLength is the length of every MessageID result.
const IdentityLength = 64

// MessageID derives the deterministic identity of entry: the hex encoded
// BLAKE3-256 digest of the feed id followed by the entry id. Content and
// timestamps do not participate, so edited entries keep their identity.
func MessageID(feed *model.Feed, entry *model.Entry) string {
	h := blake3.New()
	_, _ = h.Write([]byte(feed.ID))
	_, _ = h.Write([]byte(entry.ID))
	return hex.EncodeToString(h.Sum(nil))
}
