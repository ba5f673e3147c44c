package keywords

// englishStopWords is a compact list of function words that never carry
// meaning on their own in a resume or a job posting.
var englishStopWords = newSet(
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any",
	"are", "as", "at", "be", "because", "been", "before", "being", "below", "between", "both",
	"but", "by", "can", "could", "did", "do", "does", "doing", "down", "during", "each", "either",
	"etc", "every", "few", "for", "from", "further", "had", "has", "have", "having", "he", "her",
	"here", "hers", "herself", "him", "himself", "his", "how", "however", "i", "if", "in", "into",
	"is", "it", "its", "itself", "just", "least", "less", "many", "may", "me", "might", "more",
	"most", "much", "must", "my", "myself", "neither", "no", "nor", "not", "now", "of", "off",
	"often", "on", "once", "only", "or", "other", "our", "ours", "ourselves", "out", "over", "own",
	"per", "please", "same", "several", "she", "should", "so", "some", "such", "than", "that",
	"the", "their", "theirs", "them", "themselves", "then", "there", "these", "they", "this",
	"those", "through", "to", "too", "under", "until", "up", "upon", "us", "very", "via", "was",
	"we", "well", "were", "what", "whatever", "when", "where", "whether", "which", "while", "who",
	"whom", "whose", "why", "will", "with", "within", "without", "would", "yet", "you", "your",
	"yours", "yourself", "yourselves",
)

// domainStopWords are words that appear in nearly every posting and resume
// and therefore never discriminate between candidates.
var domainStopWords = newSet(
	"experience", "work", "working", "job", "position", "role", "company",
	"team", "project", "projects", "years", "year", "month", "months",
	"day", "days", "time", "good", "great", "excellent", "strong",
	"ability", "skills", "skill", "knowledge", "understanding",
)

// lexicalStopWords is the short list used by the regex extractor.
var lexicalStopWords = newSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had", "her", "was", "one",
	"our", "out", "day", "get", "has", "him", "his", "how", "man", "new", "now", "old", "see",
	"two", "way", "who", "boy", "did", "its", "let", "put", "say", "she", "too", "use",
)

// IsStopWord reports whether the lower-cased word is a generic or domain
// stop word.
func IsStopWord(word string) bool {
	return englishStopWords.has(word) || domainStopWords.has(word)
}
