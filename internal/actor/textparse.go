package actor

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	bulletPattern  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	urlPattern     = regexp.MustCompile(`https?://[^\s)\]>"']+`)
	headingPattern = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.+?)\s*#*\s*$`)
	fencePattern   = regexp.MustCompile("(?s)```([A-Za-z0-9_+#.-]*)[ \\t]*\\r?\\n(.*?)```")
)

// extractBullets returns the text of every list item in s.
func extractBullets(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[1]); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// extractURLs returns the distinct URLs in s, in order of appearance.
func extractURLs(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range urlPattern.FindAllString(s, -1) {
		u = strings.TrimRight(u, ".,;:")
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// extractSection returns the bullets under the first markdown heading (or
// "Name:" line) whose text contains name, stopping at the next heading.
func extractSection(s, name string) []string {
	name = strings.ToLower(name)
	var (
		in    bool
		block []string
	)
	for _, line := range strings.Split(s, "\n") {
		heading := ""
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			heading = m[1]
		} else if t := strings.TrimSpace(line); strings.HasSuffix(t, ":") && !bulletPattern.MatchString(t) {
			heading = strings.TrimSuffix(t, ":")
		}
		if heading != "" {
			h := strings.ToLower(strings.Trim(heading, "*_ "))
			if in {
				break
			}
			in = strings.Contains(h, name)
			continue
		}
		if in {
			block = append(block, line)
		}
	}
	return extractBullets(strings.Join(block, "\n"))
}

// firstHeading returns the text of the first markdown heading in s.
func firstHeading(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// leadingParagraph returns the text before the first list item or heading.
func leadingParagraph(s string) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if bulletPattern.MatchString(line) || headingPattern.MatchString(line) {
			if len(lines) > 0 {
				break
			}
			continue
		}
		if strings.TrimSpace(line) == "" && len(lines) > 0 {
			break
		}
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	return strings.Join(lines, " ")
}

// extractCodeBlock returns the first fenced code block, preferring one whose
// language tag matches want. The explanation is the text outside the block.
func extractCodeBlock(s, want string) (code, language, explanation string, ok bool) {
	matches := fencePattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return "", "", strings.TrimSpace(s), false
	}
	pick := matches[0]
	if want != "" {
		for _, m := range matches {
			if strings.EqualFold(s[m[2]:m[3]], want) {
				pick = m
				break
			}
		}
	}
	code = strings.TrimRight(s[pick[4]:pick[5]], "\n\r ")
	language = strings.ToLower(s[pick[2]:pick[3]])
	explanation = strings.TrimSpace(s[:pick[0]] + "\n" + s[pick[1]:])
	return code, language, explanation, true
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// runePrefix returns the longest prefix of s of at most n bytes that ends on
// a rune boundary.
func runePrefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
