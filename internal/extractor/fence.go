// internal/extractor/fence.go
package extractor

import "strings"

const fenceMarker = "```"

// findJSONBlock returns the body of the first fenced block tagged "json" and whether one
// was found. The body runs from just after the tag to the nearest following fence, so the
// shortest span wins. Blocks with any other tag are skipped as a whole, and an opening
// fence with no closing fence never matches.
func findJSONBlock(text string) (string, bool) {
	pos := 0
	for {
		open := strings.Index(text[pos:], fenceMarker)
		if open < 0 {
			return "", false
		}
		afterOpen := pos + open + len(fenceMarker)

		tag, bodyStart := readInfoTag(text, afterOpen)

		closeIdx := strings.Index(text[bodyStart:], fenceMarker)
		if closeIdx < 0 {
			return "", false
		}
		bodyEnd := bodyStart + closeIdx

		if strings.EqualFold(tag, "json") {
			return text[bodyStart:bodyEnd], true
		}
		pos = bodyEnd + len(fenceMarker)
	}
}

// readInfoTag reads the run of non-space characters directly after an opening fence.
// It returns the tag and the offset where the block body begins.
func readInfoTag(text string, from int) (string, int) {
	end := from
	for end < len(text) {
		switch text[end] {
		case '`', ' ', '\t', '\n', '\r', '\v', '\f':
			return text[from:end], end
		}
		end++
	}
	return text[from:end], end
}
