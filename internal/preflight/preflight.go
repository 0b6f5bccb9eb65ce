// Package preflight probes the platform over plain HTTP before a long
// headless run, catching dead networks, moved login forms, and selector
// drift while the browser is still cold.
package preflight

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
)

const maxBodySize = 4 << 20

// Report is what the probe learned about one URL.
type Report struct {
	URL        string
	StatusCode int
	FinalURL   string
	Duration   time.Duration

	// LoginFormFound is only meaningful for the login URL check: the page
	// carries the email and password inputs the browser session will fill.
	LoginFormFound bool
}

// Prober runs the connectivity checks.
type Prober struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// New creates a Prober. The client follows redirects, carries no cookies,
// and decompresses responses itself so brotli works too.
func New(userAgent string, timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableCompression: true,
			},
		},
		userAgent: userAgent,
		logger:    logger.With("component", "preflight"),
	}
}

// CheckLogin fetches the login page and verifies the credential form is
// where the browser session expects it.
func (p *Prober) CheckLogin(ctx context.Context, loginURL string) (*Report, error) {
	report, body, err := p.fetch(ctx, loginURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse login page: %w", err)
	}
	report.LoginFormFound = doc.Find(`input[name="email"]`).Length() > 0 &&
		doc.Find(`input[name="password"]`).Length() > 0

	if !report.LoginFormFound {
		p.logger.Warn("login form not found on login page; selectors may have drifted", "url", loginURL)
	}
	return report, nil
}

// CheckCommunity fetches the community URL and reports where it lands.
// Without a session the platform usually redirects to the login route or
// serves a public preview; either way a 2xx/3xx proves reachability.
func (p *Prober) CheckCommunity(ctx context.Context, communityURL string) (*Report, error) {
	report, _, err := p.fetch(ctx, communityURL)
	return report, err
}

func (p *Prober) fetch(ctx context.Context, rawURL string) (*Report, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	reader, err := decompressReader(resp, io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("decompress %s: %w", rawURL, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	report := &Report{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Duration:   time.Since(start),
	}

	p.logger.Debug("probe complete",
		"url", rawURL,
		"status", report.StatusCode,
		"final_url", report.FinalURL,
		"size", len(body),
		"duration", report.Duration,
	)
	return report, string(body), nil
}

// decompressReader wraps a reader with the decompressor matching the
// response's Content-Encoding. Handles gzip, deflate, and brotli.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
