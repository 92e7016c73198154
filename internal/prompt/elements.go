// internal/prompt/elements.go
package prompt

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// FormatElements renders the element map as one line per element:
//
//	Element 11 is a input
//	Element 12 is a a with link https://example.com/about
//
// Lines are ordered by ascending element id. An empty map renders as "".
func FormatElements(elements schemas.ElementMap) string {
	if len(elements) == 0 {
		return ""
	}

	ids := make([]schemas.ElementID, 0, len(elements))
	for id := range elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	for _, id := range ids {
		el := elements[id]
		sb.WriteString("Element ")
		sb.WriteString(strconv.Itoa(int(id)))
		sb.WriteString(" is a ")
		sb.WriteString(el.Tag)
		if el.Link != "" {
			sb.WriteString(" with link ")
			sb.WriteString(el.Link)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
