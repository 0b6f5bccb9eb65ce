package parser

// Selector chains for the Skool feed DOM, most specific first. Extraction is
// first-match-wins down each chain, with an empty match treated as absent.
// Update these when the platform markup changes.

// SelectorPostContainers matches one feed post per node. The engine also uses
// it as the readiness marker after navigating to a community.
const SelectorPostContainers = "[data-testid='post'], .post, .feed-item"

// xpathPostContainers is the fallback container query for themes that carry
// none of the known classes; contains() deliberately matches class substrings.
const xpathPostContainers = "//div[contains(@class,'post')] | //article"

var (
	titleSelectors    = []string{".post-title", "[data-testid='post-title']", "h1, h2, h3", ".content-title"}
	contentSelectors  = []string{".post-content", "[data-testid='post-content']", ".content-body", ".post-text", "p"}
	authorSelectors   = []string{".author-name", "[data-testid='author']", ".post-author", ".user-name"}
	timeSelectors     = []string{"[data-testid='timestamp']", ".timestamp", ".post-time", "time"}
	likeSelectors     = []string{".like-count", "[data-testid='likes']", ".likes"}
	commentSelectors  = []string{".comment-count", "[data-testid='comments']", ".comments"}
	categorySelectors = []string{"[data-testid='category']", ".category", ".post-category"}
)

const (
	attrPostID   = "data-post-id"
	attrDatetime = "datetime"
)
