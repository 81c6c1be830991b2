package binding

import "testing"

func TestInterpolateTitleVars(t *testing.T) {
	got := Interpolate("Image ${n} (${name})", Vars{"n": 3, "name": "board.jpg"})
	if got != "Image 3 (board.jpg)" {
		t.Fatalf("unexpected interpolation: %q", got)
	}
}

func TestInterpolateKeepsUnknownPlaceholders(t *testing.T) {
	if got := Interpolate("Image ${missing}", Vars{"n": 1}); got != "Image ${missing}" {
		t.Fatalf("unknown placeholder should stay: %q", got)
	}
	if got := Interpolate("Image ${n}", nil); got != "Image ${n}" {
		t.Fatalf("nil data should leave text untouched: %q", got)
	}
}

func TestInterpolateTrimsSpaceAndRepeats(t *testing.T) {
	if got := Interpolate("${ n }/${n}", Vars{"n": 2}); got != "2/2" {
		t.Fatalf("unexpected interpolation: %q", got)
	}
	// 不支持路径，带点的名字按普通变量名处理
	if got := Interpolate("${course.code}", Vars{"course": "PHY101"}); got != "${course.code}" {
		t.Fatalf("dotted names should stay unresolved: %q", got)
	}
}

func TestPlaceholdersAndCheck(t *testing.T) {
	ps := Placeholders("${n} - ${ name } - ${n}")
	if len(ps) != 2 || ps[0] != "n" || ps[1] != "name" {
		t.Fatalf("unexpected placeholders: %v", ps)
	}
	if err := Check("Board ${n}", Vars{"n": 1}); err != nil {
		t.Fatalf("known vars should pass: %v", err)
	}
	if err := Check("Board ${page}", Vars{"n": 1}); err == nil {
		t.Fatalf("unknown var should fail")
	}
}
