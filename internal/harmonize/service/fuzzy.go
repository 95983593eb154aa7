package service

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var reNonAlnum = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// fullProcess lower-cases and turns every run of non-alphanumerics into a space.
func fullProcess(s string) string {
	s = strings.ToLower(s)
	s = reNonAlnum.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// tokenSort sorts tokens alphabetically so word order does not matter.
func tokenSort(s string) string {
	t := strings.Fields(s)
	sort.Strings(t)
	return strings.Join(t, " ")
}

// TokenSortRatio scores two strings 0..100, insensitive to word order.
func TokenSortRatio(a, b string) int {
	sa := tokenSort(fullProcess(a))
	sb := tokenSort(fullProcess(b))
	if sa == "" || sb == "" {
		return 0
	}
	return int(math.Round(100 * ratio(sa, sb)))
}

// ScorePoint is a (string length, minimum score) breakpoint.
type ScorePoint struct {
	Length int     `json:"length" yaml:"length"`
	Score  float64 `json:"score" yaml:"score"`
}

// ScoreTable gives the minimum fuzzy score for a string length. Short
// strings need near-perfect scores ("Na" vs "NH4").
type ScoreTable []ScorePoint

var DefaultMinScores = ScoreTable{
	{Length: 1, Score: 100},
	{Length: 3, Score: 100},
	{Length: 4, Score: 90},
	{Length: 5, Score: 85},
	{Length: 6, Score: 80},
}

// For interpolates linearly between breakpoints and clamps outside them.
func (t ScoreTable) For(length int) float64 {
	if len(t) == 0 {
		return 100
	}
	pts := make(ScoreTable, len(t))
	copy(pts, t)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Length < pts[j].Length })

	x := float64(length)
	if x <= float64(pts[0].Length) {
		return pts[0].Score
	}
	last := pts[len(pts)-1]
	if x >= float64(last.Length) {
		return last.Score
	}
	for i := 1; i < len(pts); i++ {
		x0, x1 := float64(pts[i-1].Length), float64(pts[i].Length)
		if x > x1 {
			continue
		}
		if x1 == x0 {
			return pts[i].Score
		}
		f := (x - x0) / (x1 - x0)
		return pts[i-1].Score + f*(pts[i].Score-pts[i-1].Score)
	}
	return last.Score
}

// bestKey returns the highest scoring key; ties go to the earlier key.
func bestKey(s string, keys []string) (string, int) {
	best, bestScore := "", -1
	for _, k := range keys {
		if sc := TokenSortRatio(s, k); sc > bestScore {
			best, bestScore = k, sc
		}
	}
	return best, bestScore
}
