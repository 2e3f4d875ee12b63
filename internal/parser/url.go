package parser

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/chromedp/chromedp"
)

const (
	fetchTimeout       = 10 * time.Second
	jsRenderTimeout    = 10 * time.Second
	maxFetchBytes      = 8 * 1024 * 1024
	thinContentCutover = 200 // bytes; below this the page likely needs JS rendering
)

// ParseURL fetches a URL and converts its body to the canonical text used
// for chunking (§3 source_type=url). HTML is converted to Markdown; other
// text content types are kept as-is. If the fetched HTML looks like an
// empty client-rendered shell, ParseURL retries once with a headless
// browser, bounded by jsRenderTimeout.
func ParseURL(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme: %s", u.Scheme)
	}

	body, contentType, err := fetchURL(ctx, u.String())
	if err != nil {
		return nil, err
	}

	text, title, err := toCanonicalText(body, contentType, u.String())
	if err != nil {
		return nil, err
	}

	if isHTMLContentType(contentType) && len(strings.TrimSpace(text)) < thinContentCutover {
		if rendered, renderedTitle, err := renderWithHeadlessBrowser(ctx, u.String()); err == nil {
			text, title = rendered, renderedTitle
		}
	}

	return newResult(text, title), nil
}

func fetchURL(ctx context.Context, rawURL string) (body []byte, contentType string, err error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "ragdoc-ingest/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching url: unexpected status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxFetchBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > maxFetchBytes {
		return nil, "", fmt.Errorf("response exceeds %d bytes", maxFetchBytes)
	}

	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return data, ct, nil
}

func isHTMLContentType(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml" || strings.HasSuffix(ct, "+html")
}

func toCanonicalText(body []byte, contentType, finalURL string) (text, title string, err error) {
	if isHTMLContentType(contentType) || contentType == "" {
		md, err := htmltomarkdown.ConvertString(string(body), converter.WithDomain(baseOrigin(finalURL)))
		if err != nil {
			return "", "", fmt.Errorf("converting html to markdown: %w", err)
		}
		return md, extractTitle(string(body)), nil
	}
	return string(body), "", nil
}

func baseOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func extractTitle(html string) string {
	lower := strings.ToLower(html)
	start := strings.Index(lower, "<title>")
	if start < 0 {
		return ""
	}
	start += len("<title>")
	end := strings.Index(lower[start:], "</title>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(html[start : start+end])
}

// renderWithHeadlessBrowser renders a page with a headless Chrome instance
// for client-side-rendered content the static fetch can't see, bounded by
// jsRenderTimeout so a hung page never stalls ingestion indefinitely.
func renderWithHeadlessBrowser(ctx context.Context, rawURL string) (text, title string, err error) {
	renderCtx, cancel := context.WithTimeout(ctx, jsRenderTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(renderCtx, append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", "", fmt.Errorf("rendering page: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(html, converter.WithDomain(baseOrigin(rawURL)))
	if err != nil {
		return "", "", fmt.Errorf("converting rendered html to markdown: %w", err)
	}
	return md, extractTitle(html), nil
}
