package spreadsheet

// streaming.go cleans CSV input as it is read.
//
//   - bomSkipper drops a leading UTF-8 BOM (0xEF 0xBB 0xBF) written by Excel
//     on Windows
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' without buffering
//     the whole file
//
// newCSVSource applies both in the order the CSV reader needs.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newCSVSource wraps r with BOM skipping and UTF-8 sanitizing.
func newCSVSource(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkipper(r))
}

type bomSkipper struct {
	br      *bufio.Reader
	checked bool
}

func newBOMSkipper(r io.Reader) *bomSkipper {
	return &bomSkipper{br: bufio.NewReader(r)}
}

func (s *bomSkipper) Read(p []byte) (int, error) {
	if !s.checked {
		s.checked = true
		if head, err := s.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = s.br.Discard(len(utf8BOM))
		}
	}
	return s.br.Read(p)
}

type utf8Sanitizer struct {
	r io.Reader
	// Bytes of a rune split across reads.
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < len(s.pending) {
		return 0, io.ErrShortBuffer
	}

	n := copy(p, s.pending)
	s.pending = s.pending[:0]

	m, err := s.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}

	end := n
	if err == nil {
		end -= incompleteSuffix(p[:n])
		s.pending = append(s.pending, p[end:n]...)
	}
	return sanitizeInPlace(p[:end]), err
}

// incompleteSuffix returns how many trailing bytes of b start a multi-byte
// rune that is not complete yet.
func incompleteSuffix(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}

// sanitizeInPlace rewrites b with each invalid byte replaced by '?' and
// returns the new length. The result is never longer than b.
func sanitizeInPlace(b []byte) int {
	if utf8.Valid(b) {
		return len(b)
	}
	w := 0
	for r := 0; r < len(b); {
		ch, size := utf8.DecodeRune(b[r:])
		if ch == utf8.RuneError && size == 1 {
			b[w] = '?'
			w++
			r++
			continue
		}
		w += copy(b[w:], b[r:r+size])
		r += size
	}
	return w
}
