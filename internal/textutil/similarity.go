package textutil

// SimilarityRatio returns the Ratcliff/Obershelp ratio 2*M/T of a and b,
// where M counts runes in matching blocks and T is the total rune count.
// Two empty strings are identical.
func SimilarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ra, rb)) / float64(total)
}

type span struct{ alo, ahi, blo, bhi int }

func matchingRunes(a, b []rune) int {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	matched := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b2j, s)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch finds the longest common block in a[alo:ahi] and b[blo:bhi],
// preferring the earliest start in a, then in b.
func longestMatch(a []rune, b2j map[rune][]int, s span) (int, int, int) {
	besti, bestj, bestk := s.alo, s.blo, 0
	j2len := map[int]int{}
	for i := s.alo; i < s.ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < s.blo {
				continue
			}
			if j >= s.bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestk
}
