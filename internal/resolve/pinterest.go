package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"vidgrab/internal/httpx"
	"vidgrab/internal/media"
)

// NewPinterest assembles the Pinterest strategy chain: the internal
// PinResource API first, then scraping the pin page's embedded JSON.
func NewPinterest(client *httpx.Client, ep PinterestEndpoints, timeout time.Duration) *Resolver {
	return New(media.Pinterest,
		&pinAPIStrategy{client: client, endpoint: ep.PinResource, timeout: timeout},
		&pinPageScrapeStrategy{client: client, timeout: timeout},
	)
}

// PinterestEndpoints carries the PinResource API URL; the page-scrape
// strategy hits the pin URL itself.
type PinterestEndpoints struct {
	PinResource string
}

var (
	pinIDPattern         = regexp.MustCompile(`/pin/(\d+)`)
	trailingDigitPattern = regexp.MustCompile(`/(\d+)(?:/|$)`)
)

// resolvePinURL expands a pin.it short link and extracts the numeric
// pin identifier.
func resolvePinURL(ctx context.Context, client *httpx.Client, sourceURL string) (fullURL, pinID string, err error) {
	fullURL = sourceURL
	if strings.Contains(sourceURL, "pin.it") {
		fullURL, err = client.ResolveRedirect(ctx, sourceURL)
		if err != nil {
			return "", "", fmt.Errorf("resolving short link: %w", err)
		}
	}

	m := pinIDPattern.FindStringSubmatch(fullURL)
	if m == nil {
		m = trailingDigitPattern.FindStringSubmatch(fullURL)
	}
	if m == nil {
		return "", "", fmt.Errorf("no pin ID in %q", fullURL)
	}
	return fullURL, m[1], nil
}

// pinVideo is one entry of a pin's named quality-variant map.
type pinVideo struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// variantPreference is the fixed quality order: the 720p rendition
// beats the adaptive-streaming one.
var variantPreference = []string{"V_720P", "V_HLSV4"}

// pickVariant selects from a quality-variant map by preference order,
// falling back to the lexically first populated variant.
func pickVariant(list map[string]pinVideo) (pinVideo, string, error) {
	for _, key := range variantPreference {
		if v, ok := list[key]; ok && v.URL != "" {
			return v, key, nil
		}
	}
	keys := make([]string, 0, len(list))
	for k := range list {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := list[k]; v.URL != "" {
			return v, k, nil
		}
	}
	return pinVideo{}, "", fmt.Errorf("no usable variant in video list")
}

// pinAPIStrategy queries Pinterest's internal PinResource API for the
// pin's quality-variant map.
type pinAPIStrategy struct {
	client   *httpx.Client
	endpoint string
	timeout  time.Duration
}

func (s *pinAPIStrategy) Name() string { return "pin-resource" }

func (s *pinAPIStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	_, pinID, err := resolvePinURL(ctx, s.client, sourceURL)
	if err != nil {
		return nil, err
	}

	options, err := json.Marshal(map[string]any{
		"options": map[string]any{
			"id":            pinID,
			"field_set_key": "unauth_react",
		},
	})
	if err != nil {
		return nil, err
	}
	q := url.Values{"data": {string(options)}}

	body, err := s.client.Do(ctx, s.endpoint+"?"+q.Encode(), httpx.Options{
		Header: map[string]string{
			"Accept":           "application/json, text/javascript, */*; q=0.01",
			"X-Requested-With": "XMLHttpRequest",
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		ResourceResponse struct {
			Data *struct {
				Description string `json:"description"`
				Title       string `json:"title"`
				Videos      *struct {
					VideoList map[string]pinVideo `json:"video_list"`
				} `json:"videos"`
			} `json:"data"`
		} `json:"resource_response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing PinResource response: %w", err)
	}

	data := out.ResourceResponse.Data
	if data == nil {
		return nil, fmt.Errorf("no pin data in PinResource response")
	}
	if data.Videos == nil || len(data.Videos.VideoList) == 0 {
		return nil, fmt.Errorf("pin %s is not a video", pinID)
	}

	variant, label, err := pickVariant(data.Videos.VideoList)
	if err != nil {
		return nil, err
	}

	caption := data.Description
	if caption == "" {
		caption = data.Title
	}

	return &media.Resolved{
		DirectURL: variant.URL,
		Caption:   strings.TrimSpace(caption),
		Quality:   label,
	}, nil
}

// pinPageScrapeStrategy fetches the pin page and digs the pin record
// out of the __PWS_DATA__ embedded JSON blob.
type pinPageScrapeStrategy struct {
	client  *httpx.Client
	timeout time.Duration
}

func (s *pinPageScrapeStrategy) Name() string { return "page-scrape" }

func (s *pinPageScrapeStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	fullURL := sourceURL
	if strings.Contains(sourceURL, "pin.it") {
		var err error
		fullURL, err = s.client.ResolveRedirect(ctx, sourceURL)
		if err != nil {
			return nil, fmt.Errorf("resolving short link: %w", err)
		}
	}

	body, err := s.client.Do(ctx, fullURL, httpx.Options{
		Header: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing page HTML: %w", err)
	}

	raw := strings.TrimSpace(doc.Find(`script#__PWS_DATA__[type="application/json"]`).Text())
	if raw == "" {
		return nil, fmt.Errorf("no __PWS_DATA__ blob in page")
	}

	var blob any
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, fmt.Errorf("parsing __PWS_DATA__: %w", err)
	}

	pin := findPin(blob)
	if pin == nil {
		return nil, fmt.Errorf("no video pin in page data")
	}

	list := make(map[string]pinVideo)
	if videos, ok := pin["videos"].(map[string]any); ok {
		if vl, ok := videos["video_list"].(map[string]any); ok {
			for key, v := range vl {
				entry, ok := v.(map[string]any)
				if !ok {
					continue
				}
				u, _ := entry["url"].(string)
				list[key] = pinVideo{URL: u}
			}
		}
	}

	variant, label, err := pickVariant(list)
	if err != nil {
		return nil, err
	}

	caption, _ := pin["description"].(string)

	return &media.Resolved{
		DirectURL: variant.URL,
		Caption:   strings.TrimSpace(caption),
		Quality:   label,
	}, nil
}

// findPin walks an arbitrarily nested JSON structure looking for a pin
// record, i.e. an object carrying both "videos" and "id".
func findPin(v any) map[string]any {
	obj, ok := v.(map[string]any)
	if !ok {
		if arr, ok := v.([]any); ok {
			for _, item := range arr {
				if found := findPin(item); found != nil {
					return found
				}
			}
		}
		return nil
	}

	if _, hasVideos := obj["videos"].(map[string]any); hasVideos {
		if _, hasID := obj["id"]; hasID {
			return obj
		}
	}

	// Deterministic walk order keeps this independent of map iteration.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if found := findPin(obj[k]); found != nil {
			return found
		}
	}
	return nil
}
