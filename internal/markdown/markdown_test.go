package markdown

import (
	"strings"
	"testing"
)

func TestToHTML(t *testing.T) {
	src := "# Soup\n\n- [x] lentils\n- [ ] onions\n\n[site](https://example.com)\n"
	out, err := New().ToHTML([]byte(src))
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	html := string(out)
	for _, want := range []string{
		`<h1 id="soup">Soup</h1>`,
		`type="checkbox"`,
		`<a href="https://example.com">site</a>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("output missing %q:\n%s", want, html)
		}
	}
}

func TestToHTML_DropsRawHTML(t *testing.T) {
	out, err := New().ToHTML([]byte("<script>alert(1)</script>\n"))
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Errorf("raw html should not pass through: %s", out)
	}
}
