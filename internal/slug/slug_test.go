package slug

import (
	"strings"
	"testing"
)

func TestDefault_Slugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Recipe Ideas", "recipe-ideas"},
		{"recipe-ideas", "recipe-ideas"},
		{"Café Ideas", "cafe-ideas"},
		{"Résumé", "resume"},
		{"2015-01-01_000000", "2015-01-01_000000"},
		{"Trip  to   Rome", "trip-to-rome"},
		{"  spaced -- out  ", "spaced-out"},
		{"_under_", "under"},
		{"Fish & Chips!", "fish-chips"},
		{"ﬁle ①", "file-1"},
		{"日本語", ""},
		{"!!!", ""},
	}
	s := Default()
	for _, tt := range tests {
		if got := s.Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefault_Idempotent(t *testing.T) {
	s := Default()
	for _, in := range []string{"Café Ideas", "2015-01-01_000000", "Fish & Chips!"} {
		once := s.Slugify(in)
		if twice := s.Slugify(once); twice != once {
			t.Errorf("Slugify(Slugify(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestFunc(t *testing.T) {
	var s Slugger = Func(strings.ToUpper)
	if got := s.Slugify("abc"); got != "ABC" {
		t.Errorf("Slugify = %q", got)
	}
}
