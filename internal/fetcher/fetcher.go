// Package fetcher downloads a profile page and reduces it to plain text for
// the extractor.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/pbaille/attrs/internal/errors"
)

const (
	maxBodyBytes = 5 << 20
	// MaxTextBytes caps the text handed to the extractor.
	MaxTextBytes = 10 << 10
)

// Fetcher retrieves pages over HTTP.
type Fetcher struct {
	client *http.Client
}

// New returns a Fetcher with the given per-request timeout.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves rawURL and returns its readable text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", errors.Wrap(err, "invalid URL")
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + strings.TrimSpace(rawURL))
		if err != nil {
			return "", errors.Wrap(err, "invalid URL")
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.Newf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", "attrs/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("HTTP %d fetching %s", resp.StatusCode, u.Redacted())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}

	text := ExtractText(string(body))
	if text == "" {
		return "", errors.Newf("no text content at %s", u.Redacted())
	}
	return text, nil
}

// IsURL reports whether s looks like a link rather than free text.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "aside": true,
	"noscript": true, "iframe": true,
}

// ExtractText parses HTML and returns its visible text with whitespace
// collapsed, truncated to MaxTextBytes on a rune boundary.
func ExtractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result := strings.Join(strings.Fields(sb.String()), " ")
	if len(result) > MaxTextBytes {
		cut := MaxTextBytes
		for cut > 0 && !utf8.RuneStart(result[cut]) {
			cut--
		}
		result = result[:cut] + "..."
	}
	return result
}
