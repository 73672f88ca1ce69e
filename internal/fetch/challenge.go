package fetch

import "strings"

// challengeMarkers are strong textual markers of an interstitial bot
// challenge page. Weak signals like a bare 403 are deliberately not
// treated as challenges since sites also use them for plain blocks.
var challengeMarkers = []string{
	"checking your browser before accessing",
	"please wait while we check your browser",
	"cf-browser-verification",
	"cf-error-details",
	"__cf_chl_jschl_tk__",
	"challenge-platform",
}

// IsBotChallenge reports whether the HTML looks like a bot-mitigation
// interstitial rather than real page content.
func IsBotChallenge(html string) bool {
	if html == "" {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
