// Package report implements the assembler's diagnostic log: an explicit,
// owned collection of spanned messages with parent/note framing. Instead of
// bubbling one error at a time, every stage appends to a shared Report and
// everything is printed at the end.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/casmlang/casm/pkg/token"
	"github.com/casmlang/casm/pkg/utils"
)

// Severity distinguishes a hard error (aborts emission) from a note
// (informational context attached beneath a parent message).
type Severity int

const (
	SeverityError Severity = iota
	SeverityNote
)

// Message is one diagnostic: a severity, human text and the span it points
// at, plus any notes nested beneath it.
type Message struct {
	Severity Severity
	Text     string
	Span     token.Span
	Notes    []Message
}

// Report accumulates Messages produced across a whole assembly run. Nothing
// is printed until Print is called, so ordering is fully under the driver's
// control.
type Report struct {
	messages []Message
	parents  utils.Stack[*Message] // push_parent/pop_parent framing stack
}

// New returns an empty Report.
func New() *Report { return &Report{} }

// Error appends an error-severity message at span. If a parent frame is
// currently pushed, the message becomes a note under that parent instead of
// a top-level message.
func (r *Report) Error(span token.Span, format string, args ...any) {
	r.add(SeverityError, span, fmt.Sprintf(format, args...))
}

// Note appends a note-severity message, same framing rules as Error.
func (r *Report) Note(span token.Span, format string, args ...any) {
	r.add(SeverityNote, span, fmt.Sprintf(format, args...))
}

func (r *Report) add(sev Severity, span token.Span, text string) {
	msg := Message{Severity: sev, Text: text, Span: span}
	if parent, err := r.parents.Top(); err == nil {
		parent.Notes = append(parent.Notes, msg)
		return
	}
	r.messages = append(r.messages, msg)
}

// PushParent starts a new error/note frame: until the matching PopParent,
// every Error/Note call nests under parent instead of becoming a new
// top-level message. Every PushParent must be paired with a PopParent on
// every exit path — callers should normally `defer r.PopParent()`
// immediately after pushing.
func (r *Report) PushParent(span token.Span, format string, args ...any) {
	msg := Message{Severity: SeverityError, Text: fmt.Sprintf(format, args...), Span: span}
	r.messages = append(r.messages, msg)
	r.parents.Push(&r.messages[len(r.messages)-1])
}

// PopParent ends the most recently pushed parent frame. Calling PopParent
// with no frame pushed is a no-op, so a resolver failure that bails out
// early can still safely pop frames it pushed during the pass.
func (r *Report) PopParent() {
	r.parents.Pop()
}

// HasErrors reports whether any error-severity message was recorded,
// top-level or nested.
func (r *Report) HasErrors() bool {
	for _, m := range r.messages {
		if hasError(m) {
			return true
		}
	}
	return false
}

func hasError(m Message) bool {
	if m.Severity == SeverityError {
		return true
	}
	for _, n := range m.Notes {
		if hasError(n) {
			return true
		}
	}
	return false
}

// Messages returns the top-level messages in a stable, deterministic order:
// by file, then by span start, preserving insertion order for ties.
func (r *Report) Messages() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.File != out[j].Span.File {
			return out[i].Span.File < out[j].Span.File
		}
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}

// Print writes every message (and nested notes) to w in the deterministic
// order Messages returns, in a stderr-style error/note format.
func (r *Report) Print(w io.Writer) {
	for _, m := range r.Messages() {
		printMessage(w, m, 0)
	}
}

func printMessage(w io.Writer, m Message, depth int) {
	prefix := "error"
	if m.Severity == SeverityNote {
		prefix = "note"
	}
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(w, "%s%s: %s\n%s  --> %s\n", indent, prefix, m.Text, indent, m.Span)
	for _, n := range m.Notes {
		printMessage(w, n, depth+1)
	}
}
