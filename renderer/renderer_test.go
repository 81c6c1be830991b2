package renderer

import (
	"errors"
	"testing"

	"github.com/ByLCY/classnotes/layout"
)

type recordingSink struct {
	pages     []int
	finalized int
	failAt    int
}

func (s *recordingSink) EmitPage(page layout.Page) error {
	if s.failAt > 0 && page.Index+1 == s.failAt {
		return errors.New("disk full")
	}
	s.pages = append(s.pages, page.Index)
	return nil
}

func (s *recordingSink) Finalize() ([]byte, error) {
	s.finalized++
	return []byte("ok"), nil
}

func TestEncodeEmitsEveryPageThenFinalizes(t *testing.T) {
	doc := &layout.Document{Pages: []layout.Page{{Index: 0}, {Index: 1}, {Index: 2}}}
	sink := &recordingSink{}
	out, err := Encode(doc, sink)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if string(out) != "ok" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(sink.pages) != 3 || sink.pages[0] != 0 || sink.pages[2] != 2 {
		t.Fatalf("pages emitted out of order: %v", sink.pages)
	}
	if sink.finalized != 1 {
		t.Fatalf("Finalize called %d times", sink.finalized)
	}
}

func TestEncodeStopsOnPageError(t *testing.T) {
	doc := &layout.Document{Pages: []layout.Page{{Index: 0}, {Index: 1}}}
	sink := &recordingSink{failAt: 2}
	if _, err := Encode(doc, sink); err == nil {
		t.Fatalf("expected error")
	}
	if sink.finalized != 0 {
		t.Fatalf("Finalize must not run after a failed page")
	}
}

func TestEncodeRejectsEmptyDocument(t *testing.T) {
	if _, err := Encode(nil, &recordingSink{}); err == nil {
		t.Fatalf("nil document should fail")
	}
	if _, err := Encode(&layout.Document{}, &recordingSink{}); err == nil {
		t.Fatalf("document without pages should fail")
	}
}
