package discovery

import "strings"

// Keywords flag a filing title as a likely treasury disclosure.
var Keywords = []string{
	"bitcoin",
	"digital asset",
	"cryptocurrency",
	"virtual asset",
}

// MatchesTitle reports whether title contains any keyword, case-insensitively.
func MatchesTitle(title string) bool {
	t := strings.ToLower(title)
	for _, k := range Keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}
