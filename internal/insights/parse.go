package insights

import "strings"

// listMarkers are the leading characters stripped from each line of a
// bulleted or numbered completion response: bullet glyphs, digits,
// the "." and ")" that follow numbering, and surrounding whitespace.
const listMarkers = "-•*0123456789.) \t"

// ParseList normalizes a line-delimited completion response into a list.
// Blank lines are dropped and at most max items are returned.
func ParseList(response string, max int) []string {
	items := make([]string, 0, max)
	for _, rawLine := range strings.Split(response, "\n") {
		item := strings.Trim(rawLine, listMarkers)
		if item == "" {
			continue
		}
		items = append(items, item)
		if len(items) == max {
			break
		}
	}
	return items
}
