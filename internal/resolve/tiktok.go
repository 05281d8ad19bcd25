package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"vidgrab/internal/httpx"
	"vidgrab/internal/media"
)

// NewTikTok assembles the TikTok strategy chain in reliability order:
// tikwm's JSON API first, then the musicallydown and snaptik fallbacks.
func NewTikTok(client *httpx.Client, ep TikTokEndpoints, timeout time.Duration) *Resolver {
	return New(media.TikTok,
		&tikwmStrategy{client: client, endpoint: ep.Tikwm, timeout: timeout},
		&musicallyDownStrategy{client: client, endpoint: ep.MusicallyDown, timeout: timeout},
		&snapTikStrategy{client: client, endpoint: ep.SnapTik, timeout: timeout},
	)
}

// TikTokEndpoints carries the upstream URL of each TikTok strategy.
type TikTokEndpoints struct {
	Tikwm         string
	MusicallyDown string
	SnapTik       string
}

// tikwmStrategy calls the tikwm JSON API, which exposes both a
// watermarked and a high-definition play URL; the HD one wins.
type tikwmStrategy struct {
	client   *httpx.Client
	endpoint string
	timeout  time.Duration
}

func (s *tikwmStrategy) Name() string { return "tikwm" }

func (s *tikwmStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	payload, err := json.Marshal(map[string]any{"url": sourceURL, "hd": 1})
	if err != nil {
		return nil, err
	}

	body, err := s.client.Do(ctx, s.endpoint, httpx.Options{
		Method:  "POST",
		Body:    bytes.NewReader(payload),
		Header:  map[string]string{"Content-Type": "application/json"},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Play   string `json:"play"`
			HDPlay string `json:"hdplay"`
			Title  string `json:"title"`
			Music  string `json:"music"`
			Author struct {
				Nickname string `json:"nickname"`
			} `json:"author"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing tikwm response: %w", err)
	}
	if out.Code != 0 {
		return nil, fmt.Errorf("tikwm API error: %s", out.Msg)
	}

	directURL, quality := out.Data.HDPlay, "HD"
	if directURL == "" {
		directURL, quality = out.Data.Play, "SD"
	}
	if directURL == "" {
		return nil, fmt.Errorf("no play URL in tikwm response")
	}

	return &media.Resolved{
		DirectURL:  directURL,
		Caption:    out.Data.Title,
		Author:     out.Data.Author.Nickname,
		Soundtrack: out.Data.Music,
		Quality:    quality,
	}, nil
}

var (
	mp4HrefPattern    = regexp.MustCompile(`href="(https:\\?/\\?/[^"]+\.mp4[^"]*)"`)
	paragraphPattern  = regexp.MustCompile(`<p[^>]*>([^<]+)</p>`)
	downloadHrefClass = regexp.MustCompile(`(?i)href="(https://[^"]+)"[^>]*class="[^"]*download[^"]*"`)
)

// musicallyDownStrategy POSTs the musicallydown form and pattern-matches
// the returned HTML for an mp4 download link.
type musicallyDownStrategy struct {
	client   *httpx.Client
	endpoint string
	timeout  time.Duration
}

func (s *musicallyDownStrategy) Name() string { return "musicallydown" }

func (s *musicallyDownStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	form := url.Values{"url": {sourceURL}, "token": {""}}
	origin := originOf(s.endpoint)

	body, err := s.client.Do(ctx, s.endpoint, httpx.Options{
		Method: "POST",
		Body:   strings.NewReader(form.Encode()),
		Header: map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Origin":       origin,
			"Referer":      origin + "/",
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}

	m := mp4HrefPattern.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("no mp4 link in musicallydown response")
	}

	caption := ""
	if cm := paragraphPattern.FindSubmatch(body); cm != nil {
		caption = strings.TrimSpace(string(cm[1]))
	}

	return &media.Resolved{
		DirectURL: string(m[1]),
		Caption:   caption,
		Quality:   "HD",
	}, nil
}

// snapTikStrategy is the last-resort TikTok JSON API.
type snapTikStrategy struct {
	client   *httpx.Client
	endpoint string
	timeout  time.Duration
}

func (s *snapTikStrategy) Name() string { return "snaptik" }

func (s *snapTikStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	payload, err := json.Marshal(map[string]string{"url": sourceURL})
	if err != nil {
		return nil, err
	}

	body, err := s.client.Do(ctx, s.endpoint, httpx.Options{
		Method:  "POST",
		Body:    bytes.NewReader(payload),
		Header:  map[string]string{"Content-Type": "application/json"},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		VideoURL string `json:"videoUrl"`
		Caption  string `json:"caption"`
		Author   string `json:"author"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing snaptik response: %w", err)
	}
	if out.VideoURL == "" {
		return nil, fmt.Errorf("no video URL in snaptik response")
	}

	return &media.Resolved{
		DirectURL: out.VideoURL,
		Caption:   out.Caption,
		Author:    out.Author,
		Quality:   "HD",
	}, nil
}

// originOf trims an endpoint URL down to scheme://host, for Origin and
// Referer headers.
func originOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return u.Scheme + "://" + u.Host
}
