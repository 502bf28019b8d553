// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package prefix

import (
	"sort"
	"strings"

	"github.com/ryosukemondo/keyrx/pkg/keys"
)

// maxSuggestDistance is the edit-distance cutoff beyond which a catalog name
// is not offered as a suggestion.
const maxSuggestDistance = 2

// Suggest returns up to n catalog names within Damerau-Levenshtein distance
// two of the given (unknown) name, closest first.  Ties preserve catalog
// order, keeping the output deterministic.  Matching is case-insensitive so
// that "capslock" still suggests "CapsLock".
func Suggest(name string, n int) []string {
	type scored struct {
		name     string
		distance int
		index    int
	}
	//
	var matches []scored
	//
	target := strings.ToLower(name)
	//
	for i, candidate := range keys.Names() {
		d := damerauLevenshtein(target, strings.ToLower(candidate))
		if d <= maxSuggestDistance {
			matches = append(matches, scored{candidate, d, i})
		}
	}
	//
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		//
		return matches[i].index < matches[j].index
	})
	//
	if len(matches) > n {
		matches = matches[:n]
	}
	//
	result := make([]string, len(matches))
	for i, m := range matches {
		result[i] = m.name
	}
	//
	return result
}

// damerauLevenshtein computes the edit distance between two strings, where
// insertion, deletion, substitution and adjacent transposition each count as
// one edit.
func damerauLevenshtein(a string, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	//
	if la == 0 {
		return lb
	} else if lb == 0 {
		return la
	}
	// Three rolling rows: two back, one back, current.
	prev2 := make([]int, lb+1)
	prev1 := make([]int, lb+1)
	curr := make([]int, lb+1)
	//
	for j := 0; j <= lb; j++ {
		prev1[j] = j
	}
	//
	for i := 1; i <= la; i++ {
		curr[0] = i
		//
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			//
			curr[j] = min(prev1[j]+1, min(curr[j-1]+1, prev1[j-1]+cost))
			// Adjacent transposition.
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				curr[j] = min(curr[j], prev2[j-2]+1)
			}
		}
		//
		prev2, prev1, curr = prev1, curr, prev2
	}
	//
	return prev1[lb]
}
