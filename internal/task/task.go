// Package task defines the task descriptor handed from the trigger context to
// the panel, and the mapping from trigger actions to descriptor kinds.
package task

import (
	"fmt"
	"strings"
)

// Kind identifies what the panel should do with a descriptor.
type Kind string

const (
	KindExplain       Kind = "explain"
	KindDebug         Kind = "debug"
	KindGetCode       Kind = "getCode"
	KindPageContext   Kind = "pageContext" // ask about selection with page context
	KindTranslate     Kind = "translate"
	KindPageChat      Kind = "pageChat" // open chat with page context
	KindAnalyzeTech   Kind = "analyzeTech"
	KindSummarizePage Kind = "summarizePage"
	KindFlowchartPage Kind = "flowchartPage"
)

// Kinds lists every kind the dispatcher understands.
var Kinds = []Kind{
	KindExplain,
	KindDebug,
	KindGetCode,
	KindPageContext,
	KindTranslate,
	KindPageChat,
	KindAnalyzeTech,
	KindSummarizePage,
	KindFlowchartPage,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Continues reports whether a successful dispatch of this kind leaves the
// session open for follow-up messages.
func (k Kind) Continues() bool {
	return k == KindPageChat
}

// PageKind classifies the page a descriptor was taken from.
type PageKind string

const (
	PageGeneral PageKind = "general"
	PageYouTube PageKind = "youtube"
)

// ClassifyURL returns PageYouTube for YouTube watch pages.
func ClassifyURL(url string) PageKind {
	if strings.Contains(url, "youtube.com/watch") {
		return PageYouTube
	}
	return PageGeneral
}

// Descriptor is the single pending task passed through the mailbox.
type Descriptor struct {
	Kind       Kind
	Selection  string
	PageText   string
	PageHTML   string
	PageKind   PageKind
	PageError  string
	Restricted bool
}

// IsZero reports whether d carries no task.
func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

func (d Descriptor) String() string {
	return fmt.Sprintf("task(%s sel=%d text=%d html=%d page=%s restricted=%v)",
		d.Kind, len(d.Selection), len(d.PageText), len(d.PageHTML), d.PageKind, d.Restricted)
}
