package fonts

import "testing"

func TestLoadBuiltinFonts(t *testing.T) {
	for _, name := range Names() {
		data, err := Load("embed:" + name)
		if err != nil {
			t.Fatalf("Load(%s) error: %v", name, err)
		}
		if len(data) < 1024 {
			t.Fatalf("font %s looks truncated: %d bytes", name, len(data))
		}
	}
}

func TestLoadUnknownFont(t *testing.T) {
	if _, err := Load("embed:comic-sans"); err == nil {
		t.Fatalf("expected error for unknown font")
	}
}

func TestDefault(t *testing.T) {
	if Default(true) != SansBold || Default(false) != SansRegular {
		t.Fatalf("unexpected defaults")
	}
}
