// ABOUTME: Revision tokens for stored records
// ABOUTME: Generation counter plus a random suffix

package docstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// nullRev is the synthetic revision handed out by NullStore.
const nullRev = "0-0"

// nextRev returns a revision whose generation is one above prev.
func nextRev(prev string) string {
	return fmt.Sprintf("%d-%s", revGeneration(prev)+1, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// revGeneration returns the numeric generation of a revision, 0 if it has none.
func revGeneration(rev string) int {
	gen, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(gen)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
