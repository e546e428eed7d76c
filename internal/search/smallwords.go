package search

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SmallWords are the words kept lowercase in title case unless they open the title.
type SmallWords map[string]bool

func DefaultSmallWords() SmallWords {
	words := []string{
		"a", "an", "the", "and", "but", "or", "nor", "for", "so", "yet",
		"as", "at", "by", "in", "of", "off", "on", "per", "to", "up", "via",
		"vs", "with", "from", "into", "onto", "over", "than", "upon",
	}
	s := make(SmallWords, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// LoadSmallWords reads one word per line.
func LoadSmallWords(path string) (SmallWords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load small words: %w", err)
	}
	defer f.Close()
	s := SmallWords{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w := strings.ToLower(strings.TrimSpace(sc.Text())); w != "" {
			s[w] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("load small words: %w", err)
	}
	return s, nil
}

// TitleCase capitalizes every word except small words after the first.
// Whitespace runs collapse to single spaces.
func (s SmallWords) TitleCase(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if i > 0 && s[strings.ToLower(w)] {
			words[i] = strings.ToLower(w)
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}
