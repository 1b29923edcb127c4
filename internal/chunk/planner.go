package chunk

import "strings"

// SnapHint optionally nudges a window boundary near the midpoint of the
// newline-snap search range toward a more semantically meaningful
// boundary (e.g. a top-level declaration start). It must return an index
// into text, or -1 if it has no opinion for this range. Implementations
// must be pure and fast — they run inline in the planner's hot loop.
type SnapHint func(text string, searchStart, searchEnd int) int

// Plan turns text into a sequence of overlapping character windows with
// newline-snap bias, per §4.1.
//
// Algorithm: if len(text) <= effective_max, return [text]. Otherwise
// window from start=0: tentative end = min(start+effective_max, len); if
// end < len, search back for the last newline at or after
// start+effective_max/2 and, if found, set end to one past it; guarantee
// forward progress with end = max(end, start+1); append text[start:end];
// set start = max(0, end-effective_overlap); stop when end == len.
//
// hint may be nil; when non-nil it is consulted before the newline search
// and, if it returns a valid index in range, that index is used as end
// instead of the newline search result.
func Plan(text, extension string, cfg Config, hint SnapHint) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	maxChars, overlap := effectiveBudget(cfg, extension)
	n := len(text)
	if n <= maxChars {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		end := start + maxChars
		if end > n {
			end = n
		}

		if end < n {
			searchStart := start + maxChars/2
			if searchStart < start {
				searchStart = start
			}
			snapped := -1
			if hint != nil {
				if h := hint(text, searchStart, end); h >= searchStart && h < end {
					snapped = h
				}
			}
			if snapped < 0 {
				if idx := lastNewlineAtOrAfter(text, searchStart, end); idx >= 0 {
					snapped = idx + 1
				}
			}
			if snapped > 0 {
				end = snapped
			}
		}

		if end <= start {
			end = start + 1
		}
		if end > n {
			end = n
		}

		chunks = append(chunks, text[start:end])

		if end == n {
			break
		}

		next := end - overlap
		if next < 0 {
			next = 0
		}
		start = next
	}

	return chunks
}

// lastNewlineAtOrAfter returns the index of the last '\n' in text[from:to)
// (searching backward from to-1), or -1 if none is found.
func lastNewlineAtOrAfter(text string, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(text) {
		to = len(text)
	}
	for i := to - 1; i >= from; i-- {
		if text[i] == '\n' {
			return i
		}
	}
	return -1
}
