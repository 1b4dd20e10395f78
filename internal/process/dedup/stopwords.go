package dedup

// stopWords are dropped before detailed comparison. Words of two runes or
// fewer never reach this set.
var stopWords = buildSet(
	// english
	"the", "and", "for", "with", "that", "this", "from", "are", "was", "were",
	"has", "have", "had", "not", "but", "its", "into", "over", "about", "after",
	"will", "would", "can", "could", "than", "then", "also", "been", "their",
	"they", "which", "what", "when", "where", "who", "how", "all", "any", "our",
	"you", "your", "says", "said", "new",
	// russian
	"это", "как", "так", "что", "для", "или", "при", "над", "под", "про",
	"без", "его", "она", "они", "оно", "все", "всё", "был", "была", "были",
	"быть", "уже", "еще", "ещё", "также", "через", "после", "только", "если",
	"чтобы", "когда", "где", "который", "которые", "которая", "которое", "этот",
	"эта", "эти", "того", "тем", "том", "чем", "ее", "её", "них", "между",
	"может", "будет", "более", "заявил", "сообщил",
)

func buildSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	return set
}
