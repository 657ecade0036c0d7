// Copyright (c) 2015, Arbo von Monkiewitsch All rights reserved.
// Use of this source code is governed by a BSD-style
// license.

// Package levenshtein measures edit distance between short names and picks
// the closest one for "did you mean" hints.
package levenshtein

import "strings"

// Distance is the minimum number of single rune insertions, deletions or
// substitutions that turn a into b. It uses O(len(a)) space.
func Distance(a, b string) int {
	s1 := []rune(a)
	s2 := []rune(b)

	if len(s2) == 0 {
		return len(s1)
	}

	column := make([]int, len(s1)+1)
	for idx := range column {
		column[idx] = idx
	}

	for col, r2 := range s2 {
		column[0] = col + 1
		lastdiag := col

		for row, r1 := range s1 {
			olddiag := column[row+1]

			cost := 0
			if r1 != r2 {
				cost = 1
			}

			column[row+1] = min(column[row+1]+1, column[row]+1, lastdiag+cost)
			lastdiag = olddiag
		}
	}

	return column[len(s1)]
}

// Closest returns the candidate nearest to name, compared case-insensitively,
// when it is at most maxDistance edits away. Ties keep the earlier candidate.
func Closest(name string, candidates []string, maxDistance int) (string, bool) {
	best := ""
	bestDistance := maxDistance + 1
	lowered := strings.ToLower(name)

	for _, candidate := range candidates {
		d := Distance(lowered, strings.ToLower(candidate))
		if d < bestDistance {
			best, bestDistance = candidate, d
		}
	}

	return best, bestDistance <= maxDistance
}
