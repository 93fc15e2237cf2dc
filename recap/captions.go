package recap

import (
	"fmt"
	"strings"
	"unicode"
)

// genericVisionLabels are photo-tagger labels too technical to describe a moment.
var genericVisionLabels = map[string]struct{}{
	"adult": {}, "art": {}, "circle": {}, "clothing": {}, "design": {}, "document": {},
	"electronics": {}, "font": {}, "line": {}, "material": {}, "object": {}, "paper": {},
	"pattern": {}, "person": {}, "rectangle": {}, "screenshot": {}, "shape": {},
	"structure": {}, "surface": {}, "text": {}, "texture": {}, "wood": {},
}

var timePhrases = []string{
	"One quiet morning",
	"On a bright afternoon",
	"Late one evening",
	"On an ordinary weekday",
	"One slow weekend",
	"Somewhere along the way",
}

// descriptiveWords returns up to max lower-cased labels from the given lists, skipping
// technical vision labels and duplicates.
func descriptiveWords(max int, lists ...[]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, s := range list {
			w := strings.ToLower(strings.TrimSpace(s))
			if w == "" {
				continue
			}
			if _, skip := genericVisionLabels[w]; skip {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
			if len(out) == max {
				return out
			}
		}
	}
	return out
}

// GenericCaption builds a short, vague caption for a photo. i selects the time phrase so
// consecutive captions in one list read differently.
func GenericCaption(i int, photo PhotoRecord, dayKeywords []string) string {
	if i < 0 {
		i = -i
	}
	phrase := timePhrases[i%len(timePhrases)]
	words := descriptiveWords(2, photo.DetectedScenes, dayKeywords)
	switch len(words) {
	case 0:
		return phrase + ", a moment worth keeping."
	case 1:
		return fmt.Sprintf("%s, %s.", phrase, words[0])
	default:
		return fmt.Sprintf("%s, %s and %s.", phrase, words[0], words[1])
	}
}

// fallbackTheme names a fallback selection after its most descriptive label, or after its
// day-of-month when none survives the stoplist.
func fallbackTheme(photo PhotoRecord, dayKeywords []string, dayOfMonth int) string {
	words := descriptiveWords(1, photo.DetectedScenes, dayKeywords)
	if len(words) == 0 {
		return fmt.Sprintf("Day %d", dayOfMonth)
	}
	r := []rune(words[0])
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
