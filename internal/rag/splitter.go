package rag

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Splitter cuts text into fixed-size overlapping chunks, breaking at the
// strongest separator available so paragraphs and sentences survive intact.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}
	return &Splitter{ChunkSize: size, Overlap: overlap}
}

func (s *Splitter) Split(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	runes := []rune(content)
	if len(runes) <= s.ChunkSize {
		return []string{content}
	}
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakAt(runes, start, end)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

const (
	breakRankNone = iota
	breakRankSpace
	breakRankLine
	breakRankParagraph
)

// breakAt walks backwards from the hard boundary and cuts at the latest
// occurrence of the strongest separator in the chunk: a blank line beats a
// newline or sentence end, which beats a plain space. Text with no separator
// at all gets the hard cut.
func (s *Splitter) breakAt(runes []rune, start, end int) int {
	var found [breakRankParagraph + 1]int
	for i := end; i > start+1; i-- {
		rank := breakRank(runes, i)
		if rank > breakRankNone && found[rank] == 0 {
			found[rank] = i
			if rank == breakRankParagraph {
				break
			}
		}
	}
	for rank := breakRankParagraph; rank > breakRankNone; rank-- {
		if found[rank] != 0 {
			return found[rank]
		}
	}
	return end
}

// breakRank classifies a cut ending the chunk just before position i.
func breakRank(runes []rune, i int) int {
	prev := runes[i-1]
	switch {
	case prev == '\n' && i >= 2 && runes[i-2] == '\n':
		return breakRankParagraph
	case prev == '\n':
		return breakRankLine
	case isSentenceEnd(prev) && i < len(runes) && unicode.IsSpace(runes[i]):
		return breakRankLine
	case unicode.IsSpace(prev):
		return breakRankSpace
	}
	return breakRankNone
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
