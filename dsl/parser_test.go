package dsl_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ByLCY/classnotes/dsl"
)

const sampleManifest = `
// 第五讲板书
notes Lecture5 v1 {
  meta {
    title: "Lecture 5"
    author: "A. Student"
    keywords: [
      "physics"
      "waves"
    ]
  }

  instruction "Transcribe every formula."

  fonts {
    title: "embed:serif-bold"
    body: "embed:serif-regular"
  }

  page letter landscape margin 24pt {
    title-size: 16pt
    line-spacing: 4pt
    color: #333333
    title: "Board ${n}"
  }

  images {
    image "boards/1.jpg"
    image "boards/2.png" title "Summary"
  }
}
`

func TestParseManifest(t *testing.T) {
	doc, err := dsl.ParseString(sampleManifest)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if doc.Name != "Lecture5" {
		t.Fatalf("expected manifest name Lecture5, got %s", doc.Name)
	}
	if doc.Version != "v1" {
		t.Fatalf("expected version v1, got %s", doc.Version)
	}
	if len(doc.Sections) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(doc.Sections))
	}
	kinds := []string{"meta", "instruction", "fonts", "page", "images"}
	for i, want := range kinds {
		if got := doc.Sections[i].Kind(); got != want {
			t.Fatalf("section %d: expected %s, got %s", i, want, got)
		}
	}

	meta := doc.Sections[0].Meta
	title := meta.Block.Statements[0].Assignment
	if title == nil || title.Key != "title" {
		t.Fatalf("expected title assignment, got %+v", meta.Block.Statements[0])
	}
	if got := title.Value.Text(); got != "Lecture 5" {
		t.Fatalf("expected title Lecture 5, got %s", got)
	}
	keywords := meta.Block.Assignments()["keywords"].Strings()
	if len(keywords) != 2 || keywords[1] != "waves" {
		t.Fatalf("unexpected keywords: %v", keywords)
	}

	if got := string(doc.Sections[1].Instruction.Text); got != "Transcribe every formula." {
		t.Fatalf("unexpected instruction %q", got)
	}

	fonts := doc.Sections[2].Fonts.Block.Assignments()
	if fonts["title"].Text() != "embed:serif-bold" {
		t.Fatalf("unexpected title font: %q", fonts["title"].Text())
	}

	page := doc.Sections[3].Page
	if page.Spec.Size != "letter" {
		t.Fatalf("expected page size letter, got %s", page.Spec.Size)
	}
	if len(page.Spec.Params) != 3 {
		t.Fatalf("expected 3 page params, got %d", len(page.Spec.Params))
	}
	if page.Spec.Params[0].Value != "landscape" || page.Spec.Params[2].Value != "24pt" {
		t.Fatalf("unexpected page params: %+v", page.Spec.Params)
	}
	props := page.Block.Assignments()
	if props["title-size"].Text() != "16pt" || props["color"].Text() != "#333333" {
		t.Fatalf("unexpected page props: title-size=%q color=%q", props["title-size"].Text(), props["color"].Text())
	}
	if got := props["title"].Text(); !strings.Contains(got, "${n}") {
		t.Fatalf("expected interpolation in title template, got %s", got)
	}

	images := doc.Sections[4].Images.Block.Commands("image")
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	if images[0].Args[0].Value != "boards/1.jpg" || images[0].Args[0].Type != "String" {
		t.Fatalf("unexpected first image args: %+v", images[0].Args)
	}
	if got := images[1].Options(1)["title"]; got != "Summary" {
		t.Fatalf("expected per-image title Summary, got %q", got)
	}
}

func TestParsePageWithoutBlock(t *testing.T) {
	doc, err := dsl.ParseString(`notes N v1 {
  page custom 200mm 300mm
  images {
    image "a.jpg"
  }
}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	page := doc.Sections[0].Page
	if page == nil || page.Spec.Size != "custom" || page.Block != nil {
		t.Fatalf("unexpected page section: %+v", page)
	}
	if len(page.Spec.Params) != 2 || page.Spec.Params[1].Value != "300mm" {
		t.Fatalf("unexpected page params: %+v", page.Spec.Params)
	}
}

func TestParseRejectsUnknownSection(t *testing.T) {
	if _, err := dsl.ParseString(`notes N v1 { slides { } }`); err == nil {
		t.Fatalf("expected error for unknown section")
	}
	if _, err := dsl.ParseString(`doc N v1 { }`); err == nil {
		t.Fatalf("expected error for wrong header keyword")
	}
}

func TestParseRejectsUnsupportedStatements(t *testing.T) {
	cases := map[string]string{
		"bare string":   "notes N v1 {\n  images {\n    \"stray\"\n  }\n}",
		"command block": "notes N v1 {\n  images {\n    image \"a.jpg\" {\n      title: \"x\"\n    }\n  }\n}",
		"inline object": "notes N v1 {\n  meta {\n    title: { text: \"x\" }\n  }\n}",
	}
	for name, src := range cases {
		if _, err := dsl.ParseString(src); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestStatementPositions(t *testing.T) {
	doc, err := dsl.ParseString("notes N v1 {\n  images {\n    image \"a.jpg\"\n    title: \"x\"\n  }\n}")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	stmts := doc.Sections[0].Images.Block.Statements
	if len(stmts) != 2 || stmts[1].Assignment == nil {
		t.Fatalf("unexpected statements: %+v", stmts)
	}
	if stmts[1].Pos.Line != 4 || stmts[1].Pos.Column != 5 {
		t.Fatalf("unexpected position %s", stmts[1].Pos)
	}
	if err := stmts[1].Errorf("bad"); !strings.Contains(err.Error(), "4:5: bad") {
		t.Fatalf("error should carry the position: %v", err)
	}
}

func TestParseFileReportsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.notes")
	if err := os.WriteFile(path, []byte("notes N v1 {\n  images {\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := dsl.ParseFile(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if !strings.Contains(err.Error(), "bad.notes") {
		t.Fatalf("error should mention file name: %v", err)
	}
}
