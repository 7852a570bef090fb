package cmd

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	row := make([]int, lb+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= la; i++ {
		prev := i - 1
		row[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			val := min(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = val
		}
	}
	return row[lb]
}

// closest returns the candidate within edit distance 3 of input, or the best
// subsequence match when none is that close ("cont" finds "contacts").
func closest(input string, candidates []string, strip func(string) string) string {
	input = strings.ToLower(strip(input))
	if input == "" {
		return ""
	}

	bestDist := 4
	bestMatch := ""
	for _, c := range candidates {
		if d := levenshtein(input, strings.ToLower(strip(c))); d < bestDist {
			bestDist = d
			bestMatch = c
		}
	}
	if bestMatch != "" {
		return bestMatch
	}

	stripped := make([]string, len(candidates))
	for i, c := range candidates {
		stripped[i] = strings.ToLower(strip(c))
	}
	if matches := fuzzy.Find(input, stripped); len(matches) > 0 {
		return candidates[matches[0].Index]
	}
	return ""
}

// suggestCommand finds the command name closest to the unknown input.
func suggestCommand(unknown string, commands []string) string {
	return closest(unknown, commands, func(s string) string { return s })
}

// suggestFlag finds the flag closest to the unknown input. Dashes are
// ignored for comparison; the match keeps its prefix.
func suggestFlag(unknown string, flags []string) string {
	return closest(unknown, flags, func(s string) string { return strings.TrimLeft(s, "-") })
}
