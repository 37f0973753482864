package gate

// Scorer returns a language score in [0, 1] for a text. Higher means more
// likely English. Scorers must be deterministic.
type Scorer func(text string) float64

// englishStopwords is a fixed set of high-frequency English function words.
var englishStopwords = toSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being", "below",
	"between", "both", "but", "by", "can", "could", "did", "do", "does", "doing",
	"don't", "down", "during", "each", "few", "for", "from", "further", "had", "has",
	"have", "having", "he", "her", "here", "hers", "him", "his", "how", "i",
	"if", "in", "into", "is", "isn't", "it", "it's", "its", "itself", "just",
	"me", "more", "most", "my", "no", "nor", "not", "now", "of", "off",
	"on", "once", "only", "or", "other", "our", "ours", "out", "over", "own",
	"same", "she", "should", "so", "some", "such", "than", "that", "the", "their",
	"theirs", "them", "then", "there", "these", "they", "this", "those", "through", "to",
	"too", "under", "until", "up", "very", "was", "we", "were", "what", "when",
	"where", "which", "while", "who", "whom", "why", "will", "with", "would", "you",
	"your", "yours",
})

// StopwordScore is the default Scorer: the share of tokens that are English
// stopwords. Text without letter tokens scores 0.
func StopwordScore(text string) float64 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range tokens {
		if _, ok := englishStopwords[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
