package answer

import (
	"regexp"
	"strings"
)

// MaxFollowUps caps suggested follow-up questions.
const MaxFollowUps = 3

var (
	followUpMarker = regexp.MustCompile(`(?i)follow[- ]?up questions`)
	bulletLine     = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// ParseFollowUps splits a completion into the answer body and up to three
// follow-up questions. Without a marker the whole text is the answer.
// Parsing never fails.
func ParseFollowUps(raw string) (body string, followUps []string) {
	followUps = []string{}
	raw = strings.TrimSpace(raw)

	loc := followUpMarker.FindStringIndex(raw)
	if loc == nil {
		return raw, followUps
	}

	body = strings.TrimRight(raw[:loc[0]], " \t\r\n#*_:")
	if body == "" {
		body = raw
	}

	rest := raw[loc[1]:]
	// Drop the remainder of the heading line, e.g. ":**".
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = ""
	}

	for _, line := range strings.Split(rest, "\n") {
		m := bulletLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		q := strings.Trim(strings.TrimSpace(m[1]), "*_")
		if q == "" {
			continue
		}
		followUps = append(followUps, q)
		if len(followUps) == MaxFollowUps {
			break
		}
	}
	return body, followUps
}
