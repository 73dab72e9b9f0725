package report_test

import (
	"strings"
	"testing"

	"github.com/casmlang/casm/pkg/report"
	"github.com/casmlang/casm/pkg/token"
)

func TestReportAccumulatesAndOrders(t *testing.T) {
	r := report.New()
	sp2 := token.Span{File: "a.casm", Start: 10, End: 12}
	sp1 := token.Span{File: "a.casm", Start: 1, End: 2}

	r.Error(sp2, "second")
	r.Error(sp1, "first")

	msgs := r.Messages()
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("messages not ordered by span start: %+v", msgs)
	}
	if !r.HasErrors() {
		t.Fatalf("expected HasErrors() true")
	}
}

func TestReportParentFraming(t *testing.T) {
	r := report.New()
	sp := token.Span{File: "a.casm", Start: 0, End: 1}

	func() {
		r.PushParent(sp, "assertion failed")
		defer r.PopParent()
		r.Note(sp, "constant was 3, expected 4")
	}()

	msgs := r.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one top-level message, got %d", len(msgs))
	}
	if len(msgs[0].Notes) != 1 {
		t.Fatalf("expected one nested note, got %d", len(msgs[0].Notes))
	}

	var sb strings.Builder
	r.Print(&sb)
	if !strings.Contains(sb.String(), "assertion failed") {
		t.Fatalf("printed report missing parent message: %s", sb.String())
	}
}

func TestPopParentWithoutPushIsNoop(t *testing.T) {
	r := report.New()
	r.PopParent() // must not panic
	r.Error(token.Span{File: "a.casm"}, "top level")
	if len(r.Messages()) != 1 {
		t.Fatalf("expected message to remain top level")
	}
}
