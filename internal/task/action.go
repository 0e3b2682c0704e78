package task

import "fmt"

// Action is a stable trigger identifier (context-menu item or panel button).
type Action string

const (
	ActionExplainCode         Action = "explainCode"
	ActionDebugCode           Action = "debugCode"
	ActionGetCode             Action = "getCodeFlowMentor"
	ActionAskAboutSelection   Action = "askAboutSelection"
	ActionTranslate           Action = "translateFlowMentor"
	ActionOpenChatWithContext Action = "openChatWithContext"
	ActionAnalyzeTech         Action = "analyzeTech"
	ActionSummarizePage       Action = "summarizePage"
	ActionFlowchartPage       Action = "flowchartPage"
)

// Page content a trigger collects before writing its descriptor.
const (
	NeedSelection = 1 << iota
	NeedPageText
	NeedPageHTML
)

// ActionSpec describes how an action becomes a descriptor.
type ActionSpec struct {
	Action Action
	Kind   Kind
	Title  string
	Needs  int
	// Fallback is stored as page text when extraction returns nothing.
	Fallback string
	// PanelButton marks actions that originate in the panel rather than the page menu.
	PanelButton bool
}

// Requires reports whether the spec needs the given input.
func (s ActionSpec) Requires(need int) bool {
	return s.Needs&need != 0
}

var actionSpecs = []ActionSpec{
	{Action: ActionExplainCode, Kind: KindExplain, Title: "Explain this code (with flowchart)", Needs: NeedSelection},
	{Action: ActionDebugCode, Kind: KindDebug, Title: "Debug this (with page context)", Needs: NeedSelection | NeedPageText, Fallback: "No page context found."},
	{Action: ActionGetCode, Kind: KindGetCode, Title: "Get code for this", Needs: NeedSelection},
	{Action: ActionAskAboutSelection, Kind: KindPageContext, Title: "Ask about selection (with page context)", Needs: NeedSelection | NeedPageText, Fallback: "Could not read page content."},
	{Action: ActionTranslate, Kind: KindTranslate, Title: "Translate this", Needs: NeedSelection},
	{Action: ActionOpenChatWithContext, Kind: KindPageChat, Title: "Chat about this page", Needs: NeedPageText, Fallback: "Could not load page content."},
	{Action: ActionAnalyzeTech, Kind: KindAnalyzeTech, Title: "Analyze page technology", Needs: NeedPageHTML, Fallback: "Could not get HTML source.", PanelButton: true},
	{Action: ActionSummarizePage, Kind: KindSummarizePage, Title: "Summarize this page", Needs: NeedPageText, Fallback: "Page has no text content.", PanelButton: true},
	{Action: ActionFlowchartPage, Kind: KindFlowchartPage, Title: "Flowchart this page", Needs: NeedPageText, Fallback: "Page has no text content.", PanelButton: true},
}

// Actions returns every known action spec in menu order.
func Actions() []ActionSpec {
	out := make([]ActionSpec, len(actionSpecs))
	copy(out, actionSpecs)
	return out
}

// LookupAction returns the spec for an action identifier.
func LookupAction(a Action) (ActionSpec, error) {
	for _, s := range actionSpecs {
		if s.Action == a {
			return s, nil
		}
	}
	return ActionSpec{}, fmt.Errorf("unknown action %q", a)
}
