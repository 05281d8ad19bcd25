package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"vidgrab/internal/httpx"
	"vidgrab/internal/media"
)

// NewInstagram assembles the Instagram strategy chain. There is no
// stable public JSON endpoint, so the chain spans a third-party
// aggregator, direct page scraping of embedded structured data, and a
// second aggregator as last resort.
func NewInstagram(client *httpx.Client, ep InstagramEndpoints, timeout time.Duration) *Resolver {
	return New(media.Instagram,
		&igDownloaderStrategy{client: client, endpoint: ep.IGDownloader, timeout: timeout},
		&igPageScrapeStrategy{client: client, timeout: timeout},
		&vidloderStrategy{client: client, endpoint: ep.Vidloder, timeout: timeout},
	)
}

// InstagramEndpoints carries the upstream URL of each aggregator
// strategy; the page-scrape strategy hits the post URL itself.
type InstagramEndpoints struct {
	IGDownloader string
	Vidloder     string
}

// igDownloaderStrategy queries the igdownloader aggregator, which wraps
// its results in an HTML fragment inside a JSON envelope.
type igDownloaderStrategy struct {
	client   *httpx.Client
	endpoint string
	timeout  time.Duration
}

func (s *igDownloaderStrategy) Name() string { return "igdownloader" }

func (s *igDownloaderStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	q := url.Values{
		"recaptchaToken": {""},
		"q":              {sourceURL},
		"t":              {"media"},
		"lang":           {"en"},
	}
	origin := originOf(s.endpoint)

	body, err := s.client.Do(ctx, s.endpoint+"?"+q.Encode(), httpx.Options{
		Header: map[string]string{
			"Origin":  origin,
			"Referer": origin + "/",
		},
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, err
	}

	// The envelope is {"data": "<html fragment>"} on success, but some
	// deployments return the fragment bare.
	fragment := body
	var envelope struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != "" {
		fragment = []byte(envelope.Data)
	}

	m := mp4HrefPattern.FindSubmatch(fragment)
	if m == nil {
		m = downloadHrefClass.FindSubmatch(fragment)
	}
	if m == nil {
		return nil, fmt.Errorf("no video link in igdownloader response")
	}

	caption := ""
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fragment))
	if err == nil {
		caption = strings.TrimSpace(doc.Find("p.desc, .desc p, p[class*=desc]").First().Text())
	}

	return &media.Resolved{
		DirectURL: string(m[1]),
		Caption:   caption,
		Quality:   "HD",
	}, nil
}

// igPageScrapeStrategy fetches the post page itself and pulls the video
// URL out of its Open Graph tags, falling back to JSON-LD.
type igPageScrapeStrategy struct {
	client  *httpx.Client
	timeout time.Duration
}

func (s *igPageScrapeStrategy) Name() string { return "page-scrape" }

func (s *igPageScrapeStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	body, err := s.client.Do(ctx, sourceURL, httpx.Options{
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

	res := &media.Resolved{Quality: "HD"}
	for _, prop := range []string{"og:video:secure_url", "og:video:url", "og:video"} {
		if v, ok := doc.Find(`meta[property="` + prop + `"]`).Attr("content"); ok && v != "" {
			res.DirectURL = v
			break
		}
	}
	if caption, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		res.Caption = caption
	}
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && res.Caption == "" {
		res.Caption = title
	}

	if res.DirectURL == "" {
		ld, ldErr := parseVideoJSONLD(doc)
		if ldErr != nil {
			return nil, fmt.Errorf("no og:video tag and %w", ldErr)
		}
		res.DirectURL = ld.ContentURL
		if res.Caption == "" {
			res.Caption = ld.Description
		}
		res.Author = ld.authorName()
	}

	return res, nil
}

// videoJSONLD is the subset of a JSON-LD VideoObject the scraper needs.
type videoJSONLD struct {
	Type        string          `json:"@type"`
	ContentURL  string          `json:"contentUrl"`
	Description string          `json:"description"`
	Author      json.RawMessage `json:"author"`
}

func (v *videoJSONLD) authorName() string {
	if len(v.Author) == 0 {
		return ""
	}
	var obj struct {
		Name          string `json:"name"`
		AlternateName string `json:"alternateName"`
	}
	if err := json.Unmarshal(v.Author, &obj); err == nil {
		if obj.AlternateName != "" {
			return obj.AlternateName
		}
		return obj.Name
	}
	var name string
	if err := json.Unmarshal(v.Author, &name); err == nil {
		return name
	}
	return ""
}

// parseVideoJSONLD scans the page's ld+json scripts for a VideoObject.
func parseVideoJSONLD(doc *goquery.Document) (*videoJSONLD, error) {
	var found *videoJSONLD
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}

		var single videoJSONLD
		if err := json.Unmarshal([]byte(raw), &single); err == nil && single.ContentURL != "" {
			found = &single
			return false
		}

		var many []videoJSONLD
		if err := json.Unmarshal([]byte(raw), &many); err == nil {
			for i := range many {
				if many[i].ContentURL != "" {
					found = &many[i]
					return false
				}
			}
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("no VideoObject in JSON-LD")
	}
	return found, nil
}

// vidloderStrategy is the last-resort Instagram JSON API.
type vidloderStrategy struct {
	client   *httpx.Client
	endpoint string
	timeout  time.Duration
}

func (s *vidloderStrategy) Name() string { return "vidloder" }

func (s *vidloderStrategy) Attempt(ctx context.Context, sourceURL string) (*media.Resolved, error) {
	payload, err := json.Marshal(map[string]string{"url": sourceURL, "type": "instagram"})
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
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing vidloder response: %w", err)
	}
	if out.VideoURL == "" {
		return nil, fmt.Errorf("no video URL in vidloder response")
	}

	return &media.Resolved{
		DirectURL: out.VideoURL,
		Caption:   out.Caption,
		Quality:   "HD",
	}, nil
}
