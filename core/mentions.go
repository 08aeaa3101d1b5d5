package core

import "regexp"

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)

// ParseMentions extracts unique @handles from content in order of first appearance.
// Matching is case-sensitive.
func ParseMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		h := m[1]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
