package cairn

import "encoding/json"

// ExtractLargestJSON finds the largest balanced JSON object in s that
// parses successfully. Models wrap their JSON in prose and code fences,
// and prose can carry unmatched braces ("in main() { ..."), so every
// balanced pair is a candidate, not just the outermost: an open brace that
// never closes must not hide the object nested inside it. The scan is
// string- and escape-aware; returns false when no candidate parses.
func ExtractLargestJSON(s string) (json.RawMessage, bool) {
	type span struct{ start, end int }
	var spans []span

	var open []int
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if len(open) > 0 {
				inString = true
			}
		case '{':
			open = append(open, i)
		case '}':
			if n := len(open); n > 0 {
				spans = append(spans, span{open[n-1], i + 1})
				open = open[:n-1]
			}
		}
	}

	best := -1
	for i, sp := range spans {
		if best >= 0 && sp.end-sp.start <= spans[best].end-spans[best].start {
			continue
		}
		if json.Valid([]byte(s[sp.start:sp.end])) {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	return json.RawMessage(s[spans[best].start:spans[best].end]), true
}
