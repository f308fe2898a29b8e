// Package hashtag extracts hashtags from post content.
package hashtag

import "regexp"

var pattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Extract returns every hashtag in text without the leading '#', in order of
// appearance. Case and duplicates are kept.
func Extract(text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}
