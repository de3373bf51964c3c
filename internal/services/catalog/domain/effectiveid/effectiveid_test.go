package effectiveid

import "testing"

func TestFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", "yt:dQw4w9WgXcQ"},
		{"youtube short", "https://youtu.be/dQw4w9WgXcQ", "yt:dQw4w9WgXcQ"},
		{"youtube host case", "https://WWW.YouTube.com/watch?v=AbC", "yt:AbC"},
		{"facebook query", "https://www.facebook.com/watch/?v=1234567", "fb:1234567"},
		{"youtube blank query", "https://youtu.be/dQw4w9WgXcQ?v=", "yt:dQw4w9WgXcQ"},
		{"youtube repeated query", "https://www.youtube.com/watch?v=&v=AbC", "yt:AbC"},
		{"facebook blank query", "https://www.facebook.com/someone/videos/98765/?v=", "fb:98765"},
		{"facebook path", "https://www.facebook.com/someone/videos/98765/", "fb:98765"},
		{"facebook without id", "https://www.facebook.com/someone", "https://www.facebook.com/someone"},
		{"mediathek", "https://www.mediathek.at/atom/0A1B2C3D-0AB-0ABCD-0A1B2C3D-0A1B2C3D", "mediathek:0A1B2C3D-0AB-0ABCD-0A1B2C3D-0A1B2C3D"},
		{"phonogrammarchiv query", "https://catalog.phonogrammarchiv.at/lang_en/show?id=4711", "pha:4711"},
		{"pharchiv local", "http://pharchiv.local/items/815/view", "pha:815"},
		{"okto", "https://www.okto.tv/de/oktothek/episode/12345", "okto:12345"},
		{"unknown platform", "https://example.org/media/1", "https://example.org/media/1"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromURL(tt.url); got != tt.want {
				t.Fatalf("FromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFromURLEquatesSameMedia(t *testing.T) {
	a := FromURL("https://www.youtube.com/watch?v=xyz_123")
	b := FromURL("https://youtu.be/xyz_123")
	if a != b {
		t.Fatalf("expected %q == %q", a, b)
	}
}
