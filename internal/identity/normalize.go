package identity

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeUsername prepares operator input for a profile lookup: surrounding
// whitespace and control characters are dropped and the text is NFKC folded,
// so full-width or decomposed input matches the stored username.
func NormalizeUsername(s string) string {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Cc)))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.TrimSpace(result)
}

// EnrollmentURL is the customer app page where a newly seen face can be
// registered under the identifier recognition assigned to it.
func EnrollmentURL(base, uid string) string {
	return strings.TrimSuffix(base, "/") + "/register/?uid=" + url.QueryEscape(uid)
}
