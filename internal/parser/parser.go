package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/skoolstalk/internal/types"
)

// PostParser turns full-page HTML snapshots into PostRecords. It is tolerant
// by construction: a malformed post is skipped and counted, never fatal.
type PostParser struct {
	logger *slog.Logger
}

// New creates a PostParser.
func New(logger *slog.Logger) *PostParser {
	return &PostParser{
		logger: logger.With("component", "parser"),
	}
}

// Parse extracts every post visible in the snapshot, in document order.
// pageURL anchors relative permalinks; scrapedAt anchors relative timestamps.
// The int is how many posts were dropped for lacking any identity. The only
// error is a document-level parse failure, which callers may treat as a
// recoverable pass.
func (p *PostParser) Parse(pageHTML, pageURL string, scrapedAt time.Time) ([]types.PostRecord, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, 0, fmt.Errorf("parse page: %w", err)
	}

	// A broken page URL only disables relative link resolution.
	base, _ := url.Parse(pageURL)

	containers := doc.Find(SelectorPostContainers)
	if containers.Length() == 0 {
		return p.parseXPath(pageHTML, base, scrapedAt)
	}

	var records []types.PostRecord
	skipped := 0
	containers.Each(func(i int, sel *goquery.Selection) {
		rec, err := p.extractPost(sel, base, scrapedAt)
		if err != nil {
			skipped++
			p.logger.Warn("skipping post without identity", "index", i, "digest", digest(sel))
			return
		}
		records = append(records, rec)
	})

	return records, skipped, nil
}

// parseXPath is the container-discovery fallback for themes where every CSS
// selector comes up empty. Matched nodes are re-parsed as fragments so the
// same goquery field extractors apply.
func (p *PostParser) parseXPath(pageHTML string, base *url.URL, scrapedAt time.Time) ([]types.PostRecord, int, error) {
	root, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, 0, fmt.Errorf("parse page: %w", err)
	}

	nodes, err := htmlquery.QueryAll(root, xpathPostContainers)
	if err != nil || len(nodes) == 0 {
		return nil, 0, nil
	}
	p.logger.Debug("css selectors found no posts, using xpath fallback", "nodes", len(nodes))

	var records []types.PostRecord
	skipped := 0
	for i, node := range nodes {
		sel, err := fragmentSelection(htmlquery.OutputHTML(node, true))
		if err != nil {
			skipped++
			continue
		}
		rec, err := p.extractPost(sel, base, scrapedAt)
		if err != nil {
			skipped++
			p.logger.Warn("skipping post without identity", "index", i, "digest", digest(sel))
			continue
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}

// extractPost applies the field extractors to one post container.
// ErrNoPostIdentity is the only failure: both id attributes and the permalink
// are missing, so the record could never be deduplicated.
func (p *PostParser) extractPost(sel *goquery.Selection, base *url.URL, scrapedAt time.Time) (types.PostRecord, error) {
	content := firstText(sel, contentSelectors)

	title := firstText(sel, titleSelectors)
	if title == "" {
		title = synthesizeTitle(content)
	}

	author := firstText(sel, authorSelectors)
	if author == "" {
		author = types.AuthorUnknown
	}

	rawTime := firstAttr(sel, timeSelectors, attrDatetime)
	if rawTime == "" {
		rawTime = firstText(sel, timeSelectors)
	}
	timestamp, parsed := rawTime, false
	if formatted, ok := parseTimestamp(rawTime, scrapedAt); ok {
		timestamp, parsed = formatted, true
	}

	postURL := absoluteHref(sel, base)

	id, _ := sel.Attr(attrPostID)
	if id == "" {
		id, _ = sel.Attr("id")
	}
	if id == "" && postURL != "" {
		id = derivedID(postURL)
	}
	if id == "" {
		return types.PostRecord{}, types.ErrNoPostIdentity
	}

	return types.PostRecord{
		ID:              id,
		Title:           title,
		Content:         content,
		Author:          author,
		Timestamp:       timestamp,
		TimestampParsed: parsed,
		Likes:           parseCount(firstText(sel, likeSelectors)),
		CommentsCount:   parseCount(firstText(sel, commentSelectors)),
		URL:             postURL,
		Category:        firstText(sel, categorySelectors),
	}, nil
}

// fragmentSelection re-parses an element fragment and returns its root node.
func fragmentSelection(fragment string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}
	return doc.Find("body").Children().First(), nil
}

// digest is a short single-line rendering of an element for skip logs.
func digest(sel *goquery.Selection) string {
	h, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	h = collapseSpace(h)
	if r := []rune(h); len(r) > 80 {
		h = string(r[:80])
	}
	return h
}
