// Package token implements the lexical layer of the assembler: spans,
// tokens and the lexer that turns source text into a token stream.
package token

import "fmt"

// Span is an immutable half-open byte range `[Start, End)` within a single
// logical source file. Spans are produced once by the Lexer and copied
// around everywhere else (AST nodes, diagnostics); nothing ever mutates one.
type Span struct {
	File  string // logical filename, as handed to the file server
	Start int    // byte offset, inclusive
	End   int    // byte offset, exclusive
}

// Dummy returns a zero-width span not associated with any real file, used
// for synthesized nodes (e.g. the synthetic global bankdef).
func Dummy() Span { return Span{File: "<dummy>"} }

// IsDummy reports whether s was produced by Dummy.
func (s Span) IsDummy() bool { return s.File == "<dummy>" }

// Join returns the smallest span covering both s and other. The two spans
// must belong to the same file; Join panics otherwise since joining across
// files would be a programming error in the caller.
func (s Span) Join(other Span) Span {
	if s.IsDummy() {
		return other
	}
	if other.IsDummy() {
		return s
	}
	if s.File != other.File {
		panic(fmt.Sprintf("token: cannot join spans from different files (%q, %q)", s.File, other.File))
	}
	start, end := s.Start, s.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Span{File: s.File, Start: start, End: end}
}

// Before returns a zero-width span immediately preceding s, used to point
// at "the place right after the previous token" when reporting errors
// about a missing token (e.g. a missing `=>`).
func (s Span) Before() Span {
	return Span{File: s.File, Start: s.Start, End: s.Start}
}

// Excerpt returns the slice of src covered by the span. src must be the
// full contents of s.File.
func (s Span) Excerpt(src string) string {
	if s.Start < 0 || s.End > len(src) || s.Start > s.End {
		return ""
	}
	return src[s.Start:s.End]
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d-%d", s.File, s.Start, s.End)
}
