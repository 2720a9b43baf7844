package keyword

import (
	"sort"
	"strings"
)

// SuggestTitles returns up to n titles closest to query, for "did you mean" hints.
// Titles containing the query (case-insensitive) come first, then titles within an edit
// distance of max(3, len(query)/2), closest first. Ties keep catalog order.
func SuggestTitles(titles []string, query string, n int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || n <= 0 {
		return nil
	}
	maxDist := len([]rune(q)) / 2
	if maxDist < 3 {
		maxDist = 3
	}

	type candidate struct {
		title    string
		contains bool
		distance int
	}
	candidates := make([]candidate, 0)
	seen := make(map[string]struct{})
	for _, title := range titles {
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}
		lower := strings.ToLower(title)
		d := LevenshteinDistance(q, lower)
		contains := strings.Contains(lower, q)
		if !contains && d > maxDist {
			continue
		}
		candidates = append(candidates, candidate{title: title, contains: contains, distance: d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].contains != candidates[j].contains {
			return candidates[i].contains
		}
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.title
	}
	return out
}
