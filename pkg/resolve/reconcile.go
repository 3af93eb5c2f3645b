package resolve

import "strings"

// DefaultBadWords are dropped from the vote because retail listings attach
// them to every title.
var DefaultBadWords = []string{
	"board", "game", "games", "boardgame",
	"-", "|", ":",
	"new", "sealed", "buy", "online", "price", "shop",
	"amazon", "ebay",
}

// ProcessTitles reconciles noisy candidate titles into one title.
//
// The first title is the anchor. Words of the remaining titles are counted,
// the query token and bad words are removed, and the anchor's words that
// survive in the counter form the result. A lone title is returned as is, and
// an empty intersection falls back to the anchor.
func ProcessTitles(titles []string, query string, badWords []string) string {
	if len(titles) == 0 {
		return ""
	}
	if len(titles) == 1 {
		return titles[0]
	}

	counter := make(map[string]int)
	for _, other := range titles[1:] {
		for _, w := range strings.Fields(other) {
			counter[w]++
		}
	}
	filterCounter(counter, query, badWords)

	var words []string
	for _, w := range strings.Fields(titles[0]) {
		if counter[w] > 0 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return titles[0]
	}
	return strings.Join(words, " ")
}

func filterCounter(counter map[string]int, query string, badWords []string) {
	delete(counter, query)
	for _, w := range badWords {
		delete(counter, w)
	}
}
