package media

import (
	"errors"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		url  string
		want Platform
	}{
		{"https://www.tiktok.com/@user/video/7123456789", TikTok},
		{"https://vm.tiktok.com/ZMabc123/", TikTok},
		{"https://TikTok.com/t/ZTabc/", TikTok},
		{"https://www.instagram.com/reel/Cabc123/", Instagram},
		{"https://instagr.am/p/Cabc123/", Instagram},
		{"https://www.pinterest.com/pin/123456/", Pinterest},
		{"https://pin.it/4abcDEF", Pinterest},
		{"https://pinterest.co.uk/pin/99/", Pinterest},
	}

	for _, tt := range tests {
		got, err := Detect(tt.url)
		if err != nil {
			t.Errorf("Detect(%q) error = %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestDetectUnsupported(t *testing.T) {
	for _, url := range []string{
		"https://youtube.com/watch?v=abc",
		"https://example.com/tiktok",
		"not a url",
		"",
	} {
		if _, err := Detect(url); !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("Detect(%q) error = %v, want ErrUnsupportedPlatform", url, err)
		}
	}
}

func TestDetectDoesNotMatchLookalikeHosts(t *testing.T) {
	// A hostile domain embedding a platform name must not match.
	for _, url := range []string{
		"https://eviltiktok.com/video/1",
		"https://notpinterest.com/pin/1/",
	} {
		if p, err := Detect(url); err == nil {
			t.Errorf("Detect(%q) = %v, want unsupported", url, p)
		}
	}
}

func TestValidateShape(t *testing.T) {
	tests := []struct {
		name     string
		platform Platform
		url      string
		wantErr  bool
	}{
		{"tiktok canonical", TikTok, "https://www.tiktok.com/@some.user/video/7123456789012345678", false},
		{"tiktok short", TikTok, "https://vm.tiktok.com/ZMabc123/", false},
		{"tiktok t-link", TikTok, "https://www.tiktok.com/t/ZTabc123/", false},
		{"tiktok profile only", TikTok, "https://www.tiktok.com/@some.user", true},
		{"instagram reel", Instagram, "https://www.instagram.com/reel/Cabc-123/", false},
		{"instagram post", Instagram, "https://www.instagram.com/p/Cabc123/", false},
		{"instagram stories", Instagram, "https://www.instagram.com/stories/user123/", false},
		{"instagram home", Instagram, "https://www.instagram.com/", true},
		{"pinterest pin", Pinterest, "https://www.pinterest.com/pin/740349626239391234/", false},
		{"pinterest short", Pinterest, "https://pin.it/4abcDEF", false},
		{"pinterest board", Pinterest, "https://www.pinterest.com/user/board/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateShape(tt.platform, tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateShape(%v, %q) error = %v, wantErr %v", tt.platform, tt.url, err, tt.wantErr)
			}
			if err != nil {
				var ie *InvalidURLError
				if !errors.As(err, &ie) {
					t.Errorf("error type = %T, want *InvalidURLError", err)
				} else if ie.Example == "" {
					t.Error("InvalidURLError.Example is empty")
				}
			}
		})
	}
}

func TestPlatformStringAndReferer(t *testing.T) {
	for _, p := range []Platform{TikTok, Instagram, Pinterest} {
		if p.String() == "unknown" {
			t.Errorf("Platform(%d).String() = unknown", p)
		}
		if p.Referer() == "" {
			t.Errorf("%v.Referer() is empty", p)
		}
	}
	if Unknown.Referer() != "" {
		t.Error("Unknown.Referer() should be empty")
	}
}
