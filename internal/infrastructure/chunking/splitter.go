package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts text into overlapping fixed-size windows measured in runes.
// Window ends are pulled back to the nearest whitespace within a small
// tolerance so tokens are not cut in half.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		} else {
			end = backUpToWhitespace(runes, start, end, s.Overlap)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// backUpToWhitespace moves end left to the last whitespace rune. The
// pullback is capped by the overlap so no text falls between two windows,
// and by a tenth of the window so unbroken runs still get cut.
func backUpToWhitespace(runes []rune, start, end, overlap int) int {
	tolerance := (end - start) / 10
	if tolerance > overlap {
		tolerance = overlap
	}
	for i := end; i > end-tolerance && i > start; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
