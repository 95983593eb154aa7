package service

// indelDistance is the edit distance with insertions and deletions only
// (a substitution costs 2). It is the distance behind the classic
// Levenshtein ratio used for token-sort scoring.
func indelDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	al, bl := len(ra), len(rb)

	dp := make([][]int, al+1)
	for i := 0; i <= al; i++ {
		dp[i] = make([]int, bl+1)
	}
	for i := 0; i <= al; i++ {
		dp[i][0] = i
	}
	for j := 0; j <= bl; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= al; i++ {
		for j := 1; j <= bl; j++ {
			if ra[i-1] == rb[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			// insertion / deletion
			dp[i][j] = min(dp[i-1][j]+1, dp[i][j-1]+1)
		}
	}
	return dp[al][bl]
}

// ratio is 1 - indel/(|a|+|b|) in [0..1].
func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la+lb == 0 {
		return 1
	}
	return 1 - float64(indelDistance(a, b))/float64(la+lb)
}
