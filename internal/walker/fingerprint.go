package walker

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/doc-harvest/harvest/pkg/models"
)

// Fingerprint summarizes an index page by the set of entity ids visible on
// it: link order and anchor text do not participate, any single id change
// produces a different value. A repeated fingerprint means the pagination
// control silently stopped advancing.
func Fingerprint(ids []models.EntityID) string {
	sorted := make([]string, len(ids))
	for i, id := range ids {
		sorted[i] = string(id)
	}
	sort.Strings(sorted)

	sum := sha1.Sum([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}
