package bot

import (
	"strings"
	"testing"
	"time"

	"vidgrab/internal/media"
)

func TestFirstSupportedURL(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"https://vm.tiktok.com/ZMabc/", "https://vm.tiktok.com/ZMabc/"},
		{"check this out https://www.instagram.com/reel/Cabc/ so good", "https://www.instagram.com/reel/Cabc/"},
		{"https://pin.it/4abc and https://vm.tiktok.com/x/", "https://pin.it/4abc"},
		{"no links here", ""},
		{"https://youtube.com/watch?v=abc", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstSupportedURL(tt.text); got != tt.want {
			t.Errorf("firstSupportedURL(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestBuildCaption(t *testing.T) {
	dl := &media.Download{Caption: "a video", Author: "someone", Soundtrack: "a song"}
	got := buildCaption(dl)
	for _, want := range []string{"a video", "by someone", "♪ a song"} {
		if !strings.Contains(got, want) {
			t.Errorf("caption %q missing %q", got, want)
		}
	}

	if got := buildCaption(&media.Download{}); got != "" {
		t.Errorf("empty metadata caption = %q, want empty", got)
	}
}

func TestBuildCaptionTruncates(t *testing.T) {
	dl := &media.Download{Caption: strings.Repeat("é", 3000)}
	got := buildCaption(dl)
	if n := len([]rune(got)); n > captionLimit {
		t.Errorf("caption length = %d runes, want <= %d", n, captionLimit)
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("truncated caption missing ellipsis")
	}
}

func TestFormatGrant(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{2 * time.Hour, "2h"},
		{90 * time.Minute, "1h 30min"},
		{45 * time.Minute, "45min"},
		{30 * time.Second, "1min"},
	}
	for _, tt := range tests {
		if got := formatGrant(tt.d); got != tt.want {
			t.Errorf("formatGrant(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
