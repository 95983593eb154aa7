package service

import "sort"

// indexMinKeys is the dictionary size from which fuzzy matching first
// narrows the keys with a trigram index.
const indexMinKeys = 256

// trigramIndex maps character trigrams of the token-sorted keys to key
// positions, so candidates come back in dictionary order.
type trigramIndex struct {
	keys []string
	inv  map[string][]int
}

func newTrigramIndex(keys []string) *trigramIndex {
	idx := &trigramIndex{keys: keys, inv: make(map[string][]int)}
	for i, k := range keys {
		for g := range trigramSet(tokenSort(fullProcess(k))) {
			idx.inv[g] = append(idx.inv[g], i)
		}
	}
	return idx
}

func trigramSet(s string) map[string]struct{} {
	m := make(map[string]struct{})
	if s == "" {
		return m
	}
	r := []rune(" " + s + " ")
	if len(r) < 3 {
		m[string(r)] = struct{}{}
		return m
	}
	for i := 0; i <= len(r)-3; i++ {
		m[string(r[i:i+3])] = struct{}{}
	}
	return m
}

// candidates returns the keys sharing at least one trigram with s.
func (idx *trigramIndex) candidates(s string) []string {
	s = tokenSort(fullProcess(s))
	if s == "" {
		return nil
	}
	seen := make(map[int]struct{})
	for g := range trigramSet(s) {
		for _, i := range idx.inv[g] {
			seen[i] = struct{}{}
		}
	}
	pos := make([]int, 0, len(seen))
	for i := range seen {
		pos = append(pos, i)
	}
	sort.Ints(pos)
	out := make([]string, len(pos))
	for j, i := range pos {
		out[j] = idx.keys[i]
	}
	return out
}
