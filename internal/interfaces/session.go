package interfaces

import (
	"context"
)

// SelectorKind distinguishes how a selector expression addresses elements
type SelectorKind string

const (
	SelectorCSS   SelectorKind = "css"
	SelectorXPath SelectorKind = "xpath"
)

// Selector addresses elements in a widget context by CSS query or XPath
// expression. The conversational widget has no contractual markup, so
// callers always carry ordered lists of these rather than a single one.
type Selector struct {
	By   SelectorKind
	Expr string
}

// CSS builds a CSS selector
func CSS(expr string) Selector { return Selector{By: SelectorCSS, Expr: expr} }

// XPath builds an XPath selector
func XPath(expr string) Selector { return Selector{By: SelectorXPath, Expr: expr} }

// InputInfo describes one visible input-like element, used for the
// positional-fallback filling strategies when attribute matching fails.
type InputInfo struct {
	Index       int    `json:"index"`
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	AriaLabel   string `json:"aria_label"`
	Value       string `json:"value"`
	Disabled    bool   `json:"disabled"`
}

// WidgetContext is the page or embedded frame currently hosting the
// conversational widget. All operations act on the first visible match
// unless noted; ElementNotFound-class failures are returned as plain errors
// for the resolution chain to interpret.
type WidgetContext interface {
	// Count returns the number of elements matching the selector.
	Count(ctx context.Context, sel Selector) (int, error)

	// Click clicks the first visible match.
	Click(ctx context.Context, sel Selector) error

	// Fill sets the value of the first visible match and fires input events.
	Fill(ctx context.Context, sel Selector, value string) error

	// Press sends a key (e.g. "Enter") to the first visible match.
	Press(ctx context.Context, sel Selector, key string) error

	// VisibleInputs enumerates visible input and textarea elements in order.
	VisibleInputs(ctx context.Context) ([]InputInfo, error)

	// FillInputAt fills the visible input at the given enumeration index.
	FillInputAt(ctx context.Context, index int, value string) error

	// SelectByText picks the option whose text or value contains the given
	// substring on the first visible native select element.
	SelectByText(ctx context.Context, sel Selector, contains string) error

	// Upload attaches local files to the first matching file input.
	Upload(ctx context.Context, sel Selector, paths []string) error

	// Text returns the visible text content of the first match.
	Text(ctx context.Context, sel Selector) (string, error)

	// HTML returns the outer HTML of the first match.
	HTML(ctx context.Context, sel Selector) (string, error)
}

// Session is one exclusive browser automation session, owned by a single job
// for its whole lifetime. Close must release all resources on every exit
// path, including cancellation.
type Session interface {
	// Start launches the underlying browser.
	Start(ctx context.Context) error

	// Navigate loads the target URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error

	// Page returns the top-level page as a widget context.
	Page() WidgetContext

	// WidgetContext enumerates frames and returns the context hosting the
	// conversational widget, falling back to the page itself.
	WidgetContext(ctx context.Context) (WidgetContext, error)

	// Screenshot captures a full-page snapshot to the given path.
	Screenshot(ctx context.Context, path string) error

	// Close releases the browser and all session resources.
	Close() error
}

// SessionFactory creates isolated sessions, one per job
type SessionFactory interface {
	NewSession(jobID string) (Session, error)
}
