package archive

import "testing"

func TestDestinationPathLaw(t *testing.T) {
	cases := []struct {
		dest, name string
		strip      int
		want       string
	}{
		{"/out", "home/bob/file.txt", 0, "/out/home/bob/file.txt"},
		{"/out", "home/bob/file.txt", 1, "/out/bob/file.txt"},
		{"/out", "home/bob/file.txt", 2, "/out/file.txt"},
		{"/out", "home/bob/file.txt", 99, "/out/file.txt"}, // saturating
		{"/out", "file.txt", 5, "/out/file.txt"},
		{"/out", "/home/bob/file.txt", 1, "/out/bob/file.txt"},
	}
	for _, c := range cases {
		got := DestinationPath(c.dest, c.name, c.strip)
		if got != c.want {
			t.Errorf("DestinationPath(%q,%q,%d) = %q, want %q", c.dest, c.name, c.strip, got, c.want)
		}
	}
}
