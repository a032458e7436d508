// Package content prepares the text sent for extraction.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/go-shiori/go-readability"
)

// Load returns the document to analyze. An empty path reads stdin; a path
// naming an existing file reads the file; anything else is taken as the
// document text itself.
func Load(path string, stdin io.Reader) (string, error) {
	if path == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// QuoteURI percent-encodes uri, leaving '/' and ':' alone. Input that is
// already encoded is decoded first so it is not encoded twice.
func QuoteURI(uri string) string {
	if u, err := url.PathUnescape(uri); err == nil {
		uri = u
	}
	var b bytes.Buffer
	for i := 0; i < len(uri); i++ {
		c := uri[i]
		if unreserved(c) || c == '/' || c == ':' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '.', '_', '~':
		return true
	}
	return false
}

// maxBodySize caps fetched HTML at 10 MB.
const maxBodySize = 10 * 1024 * 1024

var (
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses
// (<rp>...</rp>), which readability would otherwise fold into the article
// text ("漢字" becoming "漢字かんじ").
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	return reRP.ReplaceAll(cleaned, []byte{})
}

// Article is the readable part of a web page.
type Article struct {
	Title string
	Text  string
}

// ErrTooLarge is returned for pages over the size limit.
var ErrTooLarge = errors.New("content: page exceeds size limit")

// Fetcher downloads web pages for local article extraction.
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher returns a fetcher with a 30 second client timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

// FetchArticle downloads uri and extracts its main text with readability.
func (f *Fetcher) FetchArticle(ctx context.Context, uri string) (Article, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return Article{}, fmt.Errorf("content: parse %q: %w", uri, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Article{}, err
	}
	// Mimic a real browser; some sites block unknown agents.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ja;q=0.8")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Article{}, fmt.Errorf("content: fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Article{}, fmt.Errorf("content: fetch %s: unexpected status %s", uri, resp.Status)
	}
	if resp.ContentLength > maxBodySize {
		return Article{}, ErrTooLarge
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return Article{}, fmt.Errorf("content: read %s: %w", uri, err)
	}
	if len(body) > maxBodySize {
		return Article{}, ErrTooLarge
	}

	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(body)), parsed)
	if err != nil {
		return Article{}, fmt.Errorf("content: extract article: %w", err)
	}
	return Article{Title: article.Title, Text: article.TextContent}, nil
}
