package batch

import (
	"fmt"
	"regexp"
	"strings"
)

var nameSanitizer = regexp.MustCompile(`[^\w\-. ]`)

// OutputBaseName derives the local filename for an item: the resolved URL's
// last path segment with the query stripped, capped at 60 characters,
// restricted to word characters, dash, underscore, dot and space, and
// prefixed with the zero-padded item index.
func OutputBaseName(index int, resolvedURL string) string {
	base := resolvedURL
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.SplitN(base, "?", 2)[0]
	if len(base) > 60 {
		base = base[:60]
	}
	base = nameSanitizer.ReplaceAllString(base, "")

	return fmt.Sprintf("%03d) %s.mp4", index, base)
}
