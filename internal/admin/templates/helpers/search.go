package helpers

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// HighlightSegment represents a split section of text with optional emphasis.
type HighlightSegment struct {
	Text  string
	Match bool
	Empty bool
}

// HighlightSegments splits text into segments with highlighted matches. Matching uses Unicode
// case folding, the same comparison the library filter applies, and segments always cut text on
// rune boundaries. A match that covers only part of a rune's folding (the "s" of "ß") highlights
// the whole rune.
func HighlightSegments(text, term string) []HighlightSegment {
	if text == "" {
		return nil
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(term))
	if needle == "" {
		return []HighlightSegment{{Text: text}}
	}

	// starts[i] is the byte offset of rune i in text, folded[i] the offset of its folding in hay.
	var (
		hay    strings.Builder
		starts []int
		folded []int
	)
	for i, r := range text {
		starts = append(starts, i)
		folded = append(folded, hay.Len())
		hay.WriteString(fold.String(string(r)))
	}
	starts = append(starts, len(text))
	folded = append(folded, hay.Len())
	haystack := hay.String()

	var segments []HighlightSegment
	prev := 0
	for from := 0; from < len(haystack); {
		index := strings.Index(haystack[from:], needle)
		if index < 0 {
			break
		}
		lo := runeAt(folded, from+index)
		hi := runeAt(folded, from+index+len(needle)-1) + 1
		if lo > prev {
			segments = append(segments, HighlightSegment{Text: text[starts[prev]:starts[lo]]})
		}
		segments = append(segments, HighlightSegment{Text: text[starts[lo]:starts[hi]], Match: true})
		prev = hi
		from = folded[hi]
	}

	if rest := text[starts[prev]:]; rest != "" {
		segments = append(segments, HighlightSegment{Text: rest})
	}
	return segments
}

// runeAt returns the rune whose folding contains the byte at offset.
func runeAt(folded []int, offset int) int {
	return sort.Search(len(folded), func(i int) bool { return folded[i] > offset }) - 1
}
