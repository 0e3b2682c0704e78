// Package extract reads visible text and HTML source from browser tabs.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Tab identifies a page. ID is a DevTools target ID; URL is used when no ID
// is known or for fetch-based extraction.
type Tab struct {
	ID  string
	URL string
}

func (t Tab) String() string {
	if t.ID != "" {
		return fmt.Sprintf("tab %s (%s)", t.ID, t.URL)
	}
	return t.URL
}

// Extractor reads page content.
type Extractor interface {
	// ExtractText returns the innerText of the page's main element, falling
	// back to the first article element and then the whole body.
	ExtractText(ctx context.Context, tab Tab) (string, error)
	// ExtractHTML returns the full document source.
	ExtractHTML(ctx context.Context, tab Tab) (string, error)
}

// SelectionReader is implemented by extractors that can see the user's live selection.
type SelectionReader interface {
	ExtractSelection(ctx context.Context, tab Tab) (string, error)
}

// RestrictedPageError is returned for pages the browser does not let
// extensions script.
type RestrictedPageError struct {
	URL string
}

func (e *RestrictedPageError) Error() string {
	return fmt.Sprintf("cannot read restricted page %s", e.URL)
}

// IsRestrictedPage reports whether err is a *RestrictedPageError.
func IsRestrictedPage(err error) bool {
	var r *RestrictedPageError
	return errors.As(err, &r)
}

var restrictedPrefixes = []string{
	"chrome://",
	"edge://",
	"about:",
	"chrome-extension://",
	"view-source:",
	"devtools://",
	"https://chromewebstore.google.com",
	"https://chrome.google.com/webstore",
	"https://microsoftedge.microsoft.com/addons",
}

// Restricted reports whether url is a page extraction must refuse.
func Restricted(url string) bool {
	u := strings.ToLower(strings.TrimSpace(url))
	for _, p := range restrictedPrefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

func checkRestricted(tab Tab) error {
	if Restricted(tab.URL) {
		return &RestrictedPageError{URL: tab.URL}
	}
	return nil
}

// FailureText is the page text recorded when extraction fails for a reason
// other than a restricted page.
func FailureText(err error) string {
	return "Error retrieving context: " + err.Error()
}
