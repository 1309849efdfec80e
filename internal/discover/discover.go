// Package discover locates the per-year FTPS download links published on the
// TIPO open-data detail page.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// DefaultPageURL is the TIPO open-data detail page listing the patent
// publication XML archives. Overridable via TIPO_OPDATA_URL or --page-url.
const DefaultPageURL = "https://cloud.tipo.gov.tw/S220/opdata/detail/PatentPubXML"

// ErrNoLinks indicates the page yielded no FTPS links, which usually means the
// page structure changed.
var ErrNoLinks = errors.New("no ftps links found on page")

// Client fetches the open-data page and extracts FTPS endpoint URLs.
type Client struct {
	HTTPClient *http.Client
	PageURL    string
}

// NewClient builds a discovery client. An empty pageURL falls back to the
// TIPO_OPDATA_URL environment variable, then to DefaultPageURL.
func NewClient(pageURL string) *Client {
	if pageURL == "" {
		pageURL = os.Getenv("TIPO_OPDATA_URL")
	}
	if pageURL == "" {
		pageURL = DefaultPageURL
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		PageURL: pageURL,
	}
}

// FTPSLinks fetches the page for the given year and returns the unique
// ftps:// hrefs in page order. Zero links is reported as ErrNoLinks.
func (c *Client) FTPSLinks(ctx context.Context, year string) ([]string, error) {
	pageURL, err := c.yearURL(year)
	if err != nil {
		return nil, err
	}

	slog.Info("Fetching open-data page", "url", pageURL, "year", year)

	body, err := c.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	links, err := ParseFTPSLinks(body)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoLinks, pageURL)
	}

	slog.Info("Found FTPS links", "count", len(links))
	return links, nil
}

// yearURL appends the year selector as a query parameter. The site renders
// the same link list the browser shows after picking the year in the
// dropdown.
func (c *Client) yearURL(year string) (string, error) {
	u, err := url.Parse(c.PageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", c.PageURL, err)
	}

	q := u.Query()
	q.Set("year", year)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetch retrieves the page and returns a UTF-8 reader over the body,
// honouring the charset declared in the Content-Type header.
func (c *Client) fetch(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("page fetch failed with status: %d", resp.StatusCode)
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		// Fall back to the raw body when the charset is undeclared.
		return resp.Body, nil
	}

	return struct {
		io.Reader
		io.Closer
	}{utf8Reader, resp.Body}, nil
}

// ParseFTPSLinks scans the HTML for anchors whose href uses the ftps scheme,
// deduplicated in page order.
func ParseFTPSLinks(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, "ftps://") || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})

	return links, nil
}
