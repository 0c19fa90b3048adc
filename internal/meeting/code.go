package meeting

import (
	"math/rand/v2"
	"regexp"
	"strings"
)

// Meeting codes look like "abc-defg-hij": short, human-typable, and shared
// verbatim with the call-hosting provider as the session id.
var CodeRegex = regexp.MustCompile(`^[a-z]{3}-[a-z]{4}-[a-z]{3}$`)

const codeLetters = "abcdefghijklmnopqrstuvwxyz"

// NewCode generates a random meeting code.
func NewCode() string {
	var b strings.Builder
	for i, n := range []int{3, 4, 3} {
		if i > 0 {
			b.WriteByte('-')
		}
		for j := 0; j < n; j++ {
			b.WriteByte(codeLetters[rand.IntN(len(codeLetters))])
		}
	}
	return b.String()
}
