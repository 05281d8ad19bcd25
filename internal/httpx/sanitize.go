package httpx

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that a URL is well-formed and uses HTTPS.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

var unescaper = strings.NewReplacer(
	`\/`, `/`,
	`\u0026`, `&`,
	`\u003d`, `=`,
	`&amp;`, `&`,
)

// Unescape strips backslash-escaping artifacts that media URLs pulled
// out of embedded-JSON responses commonly carry.
func Unescape(rawURL string) string {
	return strings.TrimSpace(unescaper.Replace(rawURL))
}
