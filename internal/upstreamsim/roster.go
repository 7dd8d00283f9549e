package upstreamsim

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Constants for random number generation.
const randomFloatDivisor = 1000000

// Engagement bands, picked uniformly then sampled within the band.
const (
	caseAttentive  = 0
	caseEngaged    = 1
	caseDrifting   = 2
	caseDistracted = 3
	bandCount      = 4
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// randIntn returns a random int in [0, n).
func randIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// newRoster creates size identities shaped like the upstream's student ids.
func newRoster(size int) []string {
	roster := make([]string, size)
	for i := range roster {
		roster[i] = "STU-" + strings.ToUpper(uuid.New().String()[:8])
	}
	return roster
}

// pickMatches returns a random subset of roster, empty with probability
// 1-matchRate. At most three identities are matched per frame.
func pickMatches(roster []string, matchRate float64) []string {
	if len(roster) == 0 || getRandomFloat() >= matchRate {
		return []string{}
	}
	n := 1 + randIntn(minInt(3, len(roster)))
	seen := make(map[int]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		i := randIntn(len(roster))
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, roster[i])
	}
	return out
}

// engagementScore creates a score with a varied distribution in 0..100.
func engagementScore() float64 {
	switch randIntn(bandCount) {
	case caseAttentive:
		return 85 + getRandomFloat()*15
	case caseEngaged:
		return 70 + getRandomFloat()*15
	case caseDrifting:
		return 45 + getRandomFloat()*25
	case caseDistracted:
		return getRandomFloat() * 45
	default:
		return getRandomFloat() * 100
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
