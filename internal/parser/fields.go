package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// titleRuneLimit bounds synthesized titles, counted in runes.
const titleRuneLimit = 100

// firstText walks a selector chain and returns the first non-empty,
// whitespace-collapsed text match. An empty node does not satisfy a selector,
// so later matches and later selectors still get their turn.
func firstText(root *goquery.Selection, chain []string) string {
	for _, s := range chain {
		var out string
		root.Find(s).EachWithBreak(func(_ int, m *goquery.Selection) bool {
			out = collapseSpace(m.Text())
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	return ""
}

// firstAttr is firstText for attribute values.
func firstAttr(root *goquery.Selection, chain []string, attr string) string {
	for _, s := range chain {
		var out string
		root.Find(s).EachWithBreak(func(_ int, m *goquery.Selection) bool {
			v, _ := m.Attr(attr)
			out = strings.TrimSpace(v)
			return out == ""
		})
		if out != "" {
			return out
		}
	}
	return ""
}

// absoluteHref returns the first anchor under root that resolves to an
// absolute http(s) URL against base, or "" when no such link exists.
func absoluteHref(root *goquery.Selection, base *url.URL) string {
	var out string
	root.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return true
		}

		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return true
		}
		u.Fragment = ""
		out = u.String()
		return false
	})
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// synthesizeTitle derives a title from body text: the first titleRuneLimit
// runes cut back to the last word boundary, with no ellipsis appended. A
// window without any space is cut hard; empty content becomes "Untitled".
func synthesizeTitle(content string) string {
	if content == "" {
		return "Untitled"
	}
	runes := []rune(content)
	if len(runes) <= titleRuneLimit {
		return content
	}

	cut := titleRuneLimit
	for i := titleRuneLimit - 1; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut]))
}

var countPattern = regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*([km])?`)

// parseCount turns a human count like "15 comments", "1,234" or "1.2k" into
// an int. k and m suffixes expand with rounding; garbage and absence are 0.
func parseCount(s string) int {
	m := countPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "k":
		f *= 1e3
	case "m":
		f *= 1e6
	}
	return int(math.Round(f))
}

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006",
}

var relativePattern = regexp.MustCompile(`^(\d+)\s*([a-z]+)\s+ago$`)

// parseTimestamp resolves raw into RFC 3339 UTC. It tries absolute layouts
// first, then relative phrases anchored at now. ok=false means the caller
// keeps the raw text and flags the record as unparsed.
func parseTimestamp(raw string, now time.Time) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}

	text := strings.ToLower(trimmed)
	switch text {
	case "just now", "now":
		return now.UTC().Format(time.RFC3339), true
	case "yesterday":
		return now.AddDate(0, 0, -1).UTC().Format(time.RFC3339), true
	}

	m := relativePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}

	var t time.Time
	switch unit := m[2]; {
	case strings.HasPrefix(unit, "s"):
		t = now.Add(-time.Duration(n) * time.Second)
	case strings.HasPrefix(unit, "mo"): // months, before the minutes prefix
		t = now.AddDate(0, -n, 0)
	case strings.HasPrefix(unit, "m"):
		t = now.Add(-time.Duration(n) * time.Minute)
	case strings.HasPrefix(unit, "h"):
		t = now.Add(-time.Duration(n) * time.Hour)
	case strings.HasPrefix(unit, "d"):
		t = now.AddDate(0, 0, -n)
	case strings.HasPrefix(unit, "w"):
		t = now.AddDate(0, 0, -7*n)
	case strings.HasPrefix(unit, "y"):
		t = now.AddDate(-n, 0, 0)
	default:
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

// derivedID is the stable fallback identity for posts that expose a permalink
// but no id attribute: the first 16 hex chars of the URL's SHA-256.
func derivedID(postURL string) string {
	sum := sha256.Sum256([]byte(postURL))
	return hex.EncodeToString(sum[:])[:16]
}
