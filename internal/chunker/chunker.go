// Package chunker splits free text into page sized pieces.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// MaxPageChars is the character budget of a single handwritten page
const MaxPageChars = 900

// SplitIntoPages greedily packs whitespace separated words into chunks of at most
// MaxPageChars characters. A word longer than the budget is never split; it lands
// in a chunk of its own.
func SplitIntoPages(text string) []string {
	words := strings.Fields(text)
	var pages []string
	var current strings.Builder
	currentLen := 0

	for _, word := range words {
		wordLen := utf8.RuneCountInString(word)
		if currentLen+wordLen+1 > MaxPageChars && currentLen > 0 {
			pages = append(pages, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}

	if last := strings.TrimSpace(current.String()); last != "" {
		pages = append(pages, last)
	}

	return pages
}
