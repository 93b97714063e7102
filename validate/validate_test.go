package validate

import "testing"

func TestVideoID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		wantID string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"  https://youtu.be/dQw4w9WgXcQ  ", "dQw4w9WgXcQ", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"not a url", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		id, ok := VideoID(c.in)
		if ok != c.wantOK || id != c.wantID {
			t.Fatalf("VideoID(%q)=(%q, %v), want (%q, %v)", c.in, id, ok, c.wantID, c.wantOK)
		}
	}
}

func TestSplitURLs(t *testing.T) {
	t.Parallel()

	urls := SplitURLs("https://youtu.be/aaaaaaaaaaa,\nhttps://youtu.be/bbbbbbbbbbb\n\n ,")
	if len(urls) != 2 {
		t.Fatalf("len(urls)=%d, want 2", len(urls))
	}
	if urls[0] != "https://youtu.be/aaaaaaaaaaa" || urls[1] != "https://youtu.be/bbbbbbbbbbb" {
		t.Fatalf("urls=%v", urls)
	}
}

func TestValidTheme(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"energy policy", true},
		{"ai", false},
		{"   ab   ", false},
		{"politique énergétique", true},
		{"12345", false},
		{string(make([]byte, 60)), false},
	}
	for _, c := range cases {
		if got := ValidTheme(c.in); got != c.want {
			t.Fatalf("ValidTheme(%q)=%v, want %v", c.in, got, c.want)
		}
	}
}
