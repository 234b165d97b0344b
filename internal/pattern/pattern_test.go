package pattern

import (
	"errors"
	"testing"

	"github.com/vaultarc/vaultarc/internal/core"
)

func TestGlobToRegexEquivalences(t *testing.T) {
	cases := []struct {
		glob  string
		name  string
		match bool
	}{
		{"*.txt", "report.txt", true},
		{"*.txt", "report.txt.bak", false},
		{"data??.csv", "data01.csv", true},
		{"data??.csv", "data1.csv", false},
		{"home/*/docs", "home/bob/docs", true},
	}
	for _, c := range cases {
		p, err := Compile(c.glob, Glob, false)
		if err != nil {
			t.Fatalf("compile %q: %v", c.glob, err)
		}
		if got := Match(p, c.name, Exact); got != c.match {
			t.Errorf("glob %q vs %q: got %v want %v", c.glob, c.name, got, c.match)
		}
	}
}

func TestMatchModesAreDistinctAnchors(t *testing.T) {
	p, err := Compile("foo", Glob, false)
	if err != nil {
		t.Fatal(err)
	}
	if !Match(p, "foobar", Begin) {
		t.Error("expected Begin match")
	}
	if Match(p, "foobar", End) {
		t.Error("did not expect End match")
	}
	if Match(p, "foobar", Exact) {
		t.Error("did not expect Exact match")
	}
	if !Match(p, "barfoobaz", Any) {
		t.Error("expected Any match")
	}
}

func TestIgnoreCase(t *testing.T) {
	p, err := Compile("*.TXT", Glob, true)
	if err != nil {
		t.Fatal(err)
	}
	if !Match(p, "report.txt", Exact) {
		t.Error("expected case-insensitive match")
	}
}

func TestInvalidRegexReturnsWrappedError(t *testing.T) {
	_, err := Compile("(unclosed", Regex, false)
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
	if !errors.Is(err, core.ErrInvalidPattern) {
		t.Fatalf("expected error wrapping ErrInvalidPattern, got %v", err)
	}
}
