package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"roomchat/internal/models"

	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoPreview   = errors.New("no preview available")
	ErrUnsupported = errors.New("unsupported url")
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// FirstURL returns the first http or https URL in text, or "".
func FirstURL(text string) string {
	return urlPattern.FindString(text)
}

type Fetcher struct {
	client   *http.Client
	maxBytes int64
	group    singleflight.Group
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads rawURL and extracts its title, description and image.
// Concurrent calls for the same URL share one request.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (models.Preview, error) {
	v, err, _ := f.group.Do(rawURL, func() (interface{}, error) {
		return f.fetch(ctx, rawURL)
	})
	if err != nil {
		return models.Preview{}, err
	}
	return v.(models.Preview), nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (models.Preview, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.Preview{}, ErrUnsupported
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.Preview{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "roomchat-preview/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Preview{}, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Preview{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/html" {
		return models.Preview{}, ErrUnsupported
	}

	p := Parse(io.LimitReader(resp.Body, f.maxBytes))
	if p.Title == "" && p.Description == "" {
		return models.Preview{}, ErrNoPreview
	}
	return p, nil
}

// Parse extracts Open Graph metadata, falling back to <title>.
func Parse(r io.Reader) models.Preview {
	var (
		p        models.Preview
		docTitle string
		inTitle  bool
	)

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if p.Title == "" {
				p.Title = strings.TrimSpace(docTitle)
			}
			return p
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = true
			case "meta":
				property, content := metaAttrs(tok)
				switch property {
				case "og:title":
					p.Title = content
				case "og:description":
					p.Description = content
				case "og:image":
					p.Image = content
				}
			}
		case html.EndTagToken:
			if tok := z.Token(); tok.Data == "title" {
				inTitle = false
			}
		case html.TextToken:
			if inTitle && docTitle == "" {
				docTitle = string(z.Text())
			}
		}
	}
}

func metaAttrs(tok html.Token) (property, content string) {
	for _, a := range tok.Attr {
		switch a.Key {
		case "property", "name":
			if property == "" {
				property = strings.ToLower(a.Val)
			}
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	return property, content
}
