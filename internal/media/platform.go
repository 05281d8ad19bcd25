package media

import (
	"errors"
	"fmt"
	"regexp"
)

// Platform identifies a supported video source.
type Platform int

const (
	Unknown Platform = iota
	TikTok
	Instagram
	Pinterest
)

func (p Platform) String() string {
	switch p {
	case TikTok:
		return "tiktok"
	case Instagram:
		return "instagram"
	case Pinterest:
		return "pinterest"
	default:
		return "unknown"
	}
}

// Referer returns the origin a platform's CDN expects to see on media
// requests. Many upstream CDNs reject downloads without a plausible one.
func (p Platform) Referer() string {
	switch p {
	case TikTok:
		return "https://www.tiktok.com/"
	case Instagram:
		return "https://www.instagram.com/"
	case Pinterest:
		return "https://www.pinterest.com/"
	default:
		return ""
	}
}

// signature binds a platform to its URL pattern. Order matters: Detect
// tries signatures top to bottom and returns the first match.
type signature struct {
	platform Platform
	pattern  *regexp.Regexp
}

var signatures = []signature{
	{TikTok, regexp.MustCompile(`(?i)(?:^|\.|//)(?:vm\.)?tiktok\.com/`)},
	{Instagram, regexp.MustCompile(`(?i)(?:^|\.|//)(?:instagram\.com|instagr\.am|ig\.me)/`)},
	{Pinterest, regexp.MustCompile(`(?i)(?:^|\.|//)(?:pinterest\.[a-z.]+|pin\.it)/`)},
}

// ErrUnsupportedPlatform is returned when a URL matches no known
// platform signature.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// SupportedPlatforms lists the platform names in detection order, for
// user-facing messages.
func SupportedPlatforms() []string {
	names := make([]string, 0, len(signatures))
	for _, s := range signatures {
		names = append(names, s.platform.String())
	}
	return names
}

// Detect matches a raw URL against the known platform signatures.
func Detect(rawURL string) (Platform, error) {
	for _, s := range signatures {
		if s.pattern.MatchString(rawURL) {
			return s.platform, nil
		}
	}
	return Unknown, ErrUnsupportedPlatform
}

// InvalidURLError reports a URL that matched a platform but failed its
// structural sanity check, before any network call was spent on it.
type InvalidURLError struct {
	Platform Platform
	URL      string
	Example  string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("%s URL %q has an unexpected shape (expected something like %s)", e.Platform, e.URL, e.Example)
}

var (
	tiktokShape    = regexp.MustCompile(`(?i)(vm\.tiktok\.com/[\w]+|tiktok\.com/(@[\w.-]+/video/\d+|t/[\w]+|v/\d+))`)
	instagramShape = regexp.MustCompile(`(?i)(instagram\.com|instagr\.am|ig\.me)/(reels?|p|tv|stories)/[\w.-]+`)
	pinterestShape = regexp.MustCompile(`(?i)(pin\.it/[\w]+|pinterest\.[a-z.]+/pin/\d+)`)
)

// ValidateShape checks that a URL carries the post/video identifier its
// platform needs, so obviously broken links fail fast instead of burning
// network strategies.
func ValidateShape(p Platform, rawURL string) error {
	var shape *regexp.Regexp
	var example string
	switch p {
	case TikTok:
		shape, example = tiktokShape, "https://vm.tiktok.com/ZMabc123/"
	case Instagram:
		shape, example = instagramShape, "https://www.instagram.com/reel/Cabc123/"
	case Pinterest:
		shape, example = pinterestShape, "https://pin.it/abc123"
	default:
		return ErrUnsupportedPlatform
	}
	if !shape.MatchString(rawURL) {
		return &InvalidURLError{Platform: p, URL: rawURL, Example: example}
	}
	return nil
}
