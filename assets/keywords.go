package assets

import (
	"sort"

	"github.com/rissalhedna/Financial-Video-Generator/timing"
)

var skipWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true, "by": true, "from": true, "as": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
	"what": true, "which": true, "who": true, "all": true, "each": true, "every": true, "some": true,
	"any": true, "no": true, "not": true, "only": true, "just": true, "about": true, "really": true,
	"very": true, "much": true, "many": true, "thing": true, "things": true, "way": true, "lot": true,
	"year": true, "years": true, "time": true, "day": true, "today": true, "now": true, "nearly": true,
	"make": true, "get": true, "take": true, "use": true, "show": true, "look": true, "started": true,
	"worth": true, "than": true, "more": true, "most": true, "their": true, "they": true, "you": true,
}

var visualBoost = map[string]int{
	"smartphone": 10, "phone": 10, "laptop": 10, "computer": 10, "city": 10, "office": 10,
	"meeting": 10, "stock": 10, "chart": 10, "shopping": 10, "camera": 9, "team": 9, "garage": 9,
	"factory": 9, "workshop": 9, "store": 9, "market": 9, "trading": 9, "graph": 9, "mobile": 9,
	"building": 8, "street": 8, "technology": 8, "software": 8, "business": 8, "growth": 8,
	"money": 8, "bank": 8, "warehouse": 8, "data": 7, "digital": 7, "modern": 7,
}

// Keywords picks up to n search tags from narration for a segment that
// carries no visual tags of its own.
func Keywords(narration string, n int) []string {
	type kw struct {
		word  string
		score int
	}
	seen := make(map[string]bool)
	var kws []kw
	for _, tok := range timing.Tokenize(narration) {
		w := timing.Normalize(tok)
		if len(w) < 3 || skipWords[w] || seen[w] || isNumeric(w) {
			continue
		}
		seen[w] = true
		kws = append(kws, kw{word: w, score: visualBoost[w]})
	}
	sort.SliceStable(kws, func(i, j int) bool { return kws[i].score > kws[j].score })
	if len(kws) > n {
		kws = kws[:n]
	}
	out := make([]string, len(kws))
	for i, k := range kws {
		out[i] = k.word
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' && r != '%' && r != '$' {
			return false
		}
	}
	return true
}
