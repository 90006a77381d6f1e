package blog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const slugRemoved = `*+~.()'"!:@?`

// Slugify lowercases title, folds diacritics, drops punctuation that is
// awkward in URLs and joins words with "-".
func Slugify(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	folded = strings.Map(func(r rune) rune {
		if strings.ContainsRune(slugRemoved, r) {
			return -1
		}
		return unicode.ToLower(r)
	}, folded)
	return strings.Join(strings.Fields(folded), "-")
}
