package engine

import "testing"

func TestFoldText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase passthrough", "backend engineer", "backend engineer"},
		{"casing folded", "Backend ENGINEER", "backend engineer"},
		{"punctuation folded", "Backend, Engineer — (Remote)!", "backend engineer remote"},
		{"whitespace collapsed", "  backend \t\n engineer  ", "backend engineer"},
		{"empty", "", ""},
		{"only punctuation", "—!,.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FoldText(tt.in); got != tt.want {
				t.Errorf("FoldText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFoldTextStable(t *testing.T) {
	a := FoldText("Senior Go Developer - Remote, USA")
	b := FoldText("senior   GO developer (remote)   USA")
	if a != b {
		t.Errorf("expected identical folds, got %q vs %q", a, b)
	}
}

func TestCleanHTML(t *testing.T) {
	got := CleanHTML("<p>We use <b>Go</b> and Kubernetes.</p>")
	want := "We use Go and Kubernetes."
	if got != want {
		t.Errorf("CleanHTML = %q, want %q", got, want)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	if !LooksLikeHTML(`<div class="posting">Engineer</div>`) {
		t.Error("expected markup to be detected")
	}
	if LooksLikeHTML("Backend Engineer — requires Python, Docker, SQL") {
		t.Error("plain text misdetected as HTML")
	}
}

func TestNormalizeSpace(t *testing.T) {
	if got := NormalizeSpace("  a\t b\n\nc "); got != "a b c" {
		t.Errorf("NormalizeSpace = %q", got)
	}
}
