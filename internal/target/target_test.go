package target

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestNormalize_SearchEngineURL(t *testing.T) {
	got, err := Normalize("https://google.com/search?q=pizza+nyc")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.HasPrefix(got, MapsSearchBase) {
		t.Fatalf("got %q, want maps search URL", got)
	}
	q, err := url.QueryUnescape(strings.TrimPrefix(got, MapsSearchBase))
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}
	if q != "pizza nyc" {
		t.Errorf("query: got %q, want %q", q, "pizza nyc")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"maps url unchanged", "https://www.google.com/maps/x/y", "https://www.google.com/maps/x/y"},
		{"maps place url unchanged", "https://www.google.com/maps/place/Foo/@1,2,3z?q=bar", "https://www.google.com/maps/place/Foo/@1,2,3z?q=bar"},
		{"short maps link", "https://maps.app.goo.gl/abc123", "https://maps.app.goo.gl/abc123"},
		{"free text", "best tacos", MapsSearchBase + "best+tacos"},
		{"free text trimmed", "  top coaching in Bhopal ", MapsSearchBase + "top+coaching+in+Bhopal"},
		{"special characters", "café & bar", MapsSearchBase + "caf%C3%A9+%26+bar"},
		{"percent encoded q", "https://www.google.com/search?q=caf%C3%A9%20paris&hl=en", MapsSearchBase + "caf%C3%A9+paris"},
		{"bing query", "https://www.bing.com/search?form=x&q=dentists+austin", MapsSearchBase + "dentists+austin"},
		{"maps search with q", "https://www.google.com/maps?q=sushi", MapsSearchBase + "sushi"},
		{"duckduckgo query", "https://duckduckgo.com/?q=vegan+bakery&ia=web", MapsSearchBase + "vegan+bakery"},
		{"schemeless maps url gets https", "www.google.com/maps/place/X", "https://www.google.com/maps/place/X"},
		{"schemeless short link gets https", "maps.app.goo.gl/abc123", "https://maps.app.goo.gl/abc123"},
		{"q on a non-search site is query text", "https://shop.example/products?q=shoes", MapsSearchBase + url.QueryEscape("https://shop.example/products?q=shoes")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if err != nil {
				t.Fatalf("normalize(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n", "https://google.com/search?q=", "https://google.com/search?q=%zz"} {
		if _, err := Normalize(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("normalize(%q): got %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestIsMapsURL(t *testing.T) {
	tests := map[string]bool{
		"https://www.google.com/maps/search/pizza": true,
		"https://maps.google.co.in/?cid=1":         true,
		"google.com/maps/place/x":                  true,
		"https://www.google.com/mapsearch":         false,
		"https://example.com/maps/x":               false,
		"pizza near me":                            false,
	}
	for in, want := range tests {
		if got := IsMapsURL(in); got != want {
			t.Errorf("IsMapsURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalize_ResultIsNavigable(t *testing.T) {
	for _, in := range []string{"google.com/maps/place/Cafe+Roma", "maps.google.com/?cid=42", "pizza"} {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("normalize(%q): %v", in, err)
		}
		u, err := url.Parse(got)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			t.Errorf("normalize(%q) = %q, want an absolute https URL", in, got)
		}
	}
}
