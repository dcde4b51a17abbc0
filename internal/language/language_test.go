package language

import "testing"

func TestParse(t *testing.T) {
	cases := map[string]Code{
		"ko":      Korean,
		"Korean":  Korean,
		"ko-KR":   Korean,
		"bangla":  Bengali,
		"bn-BD":   Bengali,
		"ENGLISH": English,
		"en_US":   English,
		"auto":    Auto,
		"":        Unknown,
		"ja-JP":   "ja",
		"fr":      "fr",
	}
	for in, want := range cases {
		if got := Parse(in); got != want {
			t.Fatalf("Parse(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTranslationSource(t *testing.T) {
	if Korean.TranslationSource() != Korean {
		t.Fatal("expected fixed language to translate from itself")
	}
	if Code("ja").TranslationSource() != Auto {
		t.Fatal("expected foreign language to translate from auto")
	}
	if Unknown.TranslationSource() != Auto {
		t.Fatal("expected unknown to translate from auto")
	}
}

func TestTargetsAreFixed(t *testing.T) {
	if len(Targets) != 3 {
		t.Fatalf("expected three targets, got %d", len(Targets))
	}
	for _, c := range Targets {
		if !c.IsTarget() {
			t.Fatalf("expected %s to be a target", c)
		}
	}
	if Auto.IsTarget() {
		t.Fatal("auto must not be a target")
	}
}
