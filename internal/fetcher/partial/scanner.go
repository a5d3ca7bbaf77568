// Package partial implements the chunk state machine shared by the partial HTML fetchers.
//
// A Scanner is fed body chunks in order. It ignores everything before the HTML doctype,
// accumulates from the chunk holding the doctype onward, and reports done once the chunk
// holding </head> has been appended or the chunk ceiling is reached.
package partial

import (
	"errors"
	"unicode/utf8"
)

// DefaultMaxChunks bounds how many chunks a fetch reads before giving up on </head>.
const DefaultMaxChunks = 15

var (
	doctypeMarker = []byte("<!doctype html>")
	headEndMarker = []byte("</head>")
)

// ErrInvalidUTF8 is returned by Text when the accumulated bytes are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("document head is not valid utf-8")

// Scanner accumulates the head of an HTML document from a chunked body.
// It is not safe for concurrent use.
type Scanner struct {
	maxChunks int
	chunks    int
	reading   bool
	finished  bool
	prev      []byte
	buf       []byte
}

// NewScanner returns a Scanner that stops after maxChunks chunks.
// Values below one fall back to DefaultMaxChunks.
func NewScanner(maxChunks int) *Scanner {
	if maxChunks < 1 {
		maxChunks = DefaultMaxChunks
	}
	return &Scanner{maxChunks: maxChunks}
}

// Feed consumes the next chunk and reports whether reading should stop. Empty chunks are
// ignored and do not count toward the ceiling. Feeding after done has no effect.
func (s *Scanner) Feed(chunk []byte) bool {
	if s.Done() || len(chunk) == 0 {
		return s.Done()
	}
	s.chunks++

	if !s.reading {
		s.startReading(chunk)
	} else {
		// Keep enough of the previous bytes to catch a marker split across chunks.
		from := max(len(s.buf)-(len(headEndMarker)-1), 0)
		s.buf = append(s.buf, chunk...)
		if indexFold(s.buf[from:], headEndMarker) >= 0 {
			s.finished = true
		}
	}
	return s.Done()
}

func (s *Scanner) startReading(chunk []byte) {
	tail := s.prev
	if keep := len(doctypeMarker) - 1; len(tail) > keep {
		tail = tail[len(tail)-keep:]
	}
	window := make([]byte, 0, len(tail)+len(chunk))
	window = append(window, tail...)
	window = append(window, chunk...)

	idx := indexFold(window, doctypeMarker)
	if idx < 0 {
		s.prev = append(s.prev[:0], chunk...)
		return
	}

	s.reading = true
	// Offset of the doctype within buf; an earlier </head> does not end the head.
	start := idx - len(tail)
	if idx < len(tail) {
		start += len(s.prev)
		s.buf = append(s.buf, s.prev...)
	}
	s.buf = append(s.buf, chunk...)
	s.prev = nil
	if indexFold(s.buf[start:], headEndMarker) >= 0 {
		s.finished = true
	}
}

// Done reports whether the head was found or the ceiling reached.
func (s *Scanner) Done() bool {
	return s.finished || s.chunks >= s.maxChunks
}

// Finished reports whether </head> was seen.
func (s *Scanner) Finished() bool {
	return s.finished
}

// Chunks returns the number of non-empty chunks fed so far.
func (s *Scanner) Chunks() int {
	return s.chunks
}

// Bytes returns the accumulated bytes. The slice aliases the Scanner's buffer.
func (s *Scanner) Bytes() []byte {
	return s.buf
}

// Text returns the accumulated document as a string. A multi-byte character cut off at
// the very end by early termination is dropped; any other invalid sequence is an error.
func (s *Scanner) Text() (string, error) {
	b := trimPartialRune(s.buf)
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// trimPartialRune drops a trailing incomplete UTF-8 sequence.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < utf8.RuneSelf {
			return b
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

// indexFold returns the index of the first ASCII case-insensitive match of needle
// in haystack, or -1.
func indexFold(haystack, needle []byte) int {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		match := true
		for j := range n {
			if lower(haystack[i+j]) != lower(needle[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
