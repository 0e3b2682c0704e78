package dispatch

import (
	"fmt"
	"strings"

	"flowmentor/internal/conversation"
	"flowmentor/internal/prompts"
	"flowmentor/internal/task"
)

// Local notices.
const (
	noticeNewProject    = "<p><strong>New project started.</strong> Describe your idea or paste some code.</p>"
	noticePageCleared   = "<p>Page context cleared.</p>"
	noticeLanguageFmt   = "<p>Translations will now use <strong>%s</strong>.</p>"
	noticeNoPageContext = "Could not load page content."
	noticePageLoaded    = "<p>Page loaded.</p>"
	noticeAnalyzing     = "<p>Analyzing your project...</p>"
)

// Step applies ev to s. The returned state shares nothing mutable with s.
func Step(s State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case TaskArrived:
		return onTask(s, ev.Descriptor)
	case UserMessage:
		return onUserMessage(s, ev.Text)
	case ModelReplied:
		return onReply(s, ev.Text)
	case ModelFailed:
		return onFailure(s, ev.Err)
	case NewProject:
		return onNewProject(s)
	case RefreshPage:
		return onRefresh(s, ev)
	case SetLanguage:
		return onSetLanguage(s, ev.Language)
	default:
		return s, nil
	}
}

func showError(err error) ShowError {
	return ShowError{Err: err, Message: Message(err)}
}

// noticeOr returns the prompt's notice, or fallback when rendering failed.
func noticeOr(p prompts.Prompt, err error, fallback string) string {
	if err != nil || strings.TrimSpace(p.Notice) == "" {
		return fallback
	}
	return p.Notice
}

// fail keeps s and reports err. Used for transitions the cycle forbids.
func fail(s State, err error) (State, []Effect) {
	return s, []Effect{showError(err)}
}

func onTask(s State, d task.Descriptor) (State, []Effect) {
	if s.Status == StatusAwaitingModel {
		pending := d
		s.Pending = &pending
		return s, nil
	}
	if !d.Kind.Valid() {
		return s, []Effect{showError(&UnknownTaskError{Kind: d.Kind})}
	}

	next := s
	if err := next.moveTo(StatusDispatching); err != nil {
		return fail(s, err)
	}
	next.Session = conversation.New()
	next.Phase = PhaseFresh
	next.Kind = d.Kind
	next.Stack = ""
	next.Question = ""
	next.Waiting = ""
	next.Origin = ""
	next.RollbackTo = 0
	next.PageText = ""
	next.PageKind = ""
	effects := []Effect{ClearLog{}, DiscardCompose{}}

	if d.Restricted {
		if err := next.moveTo(StatusIdle); err != nil {
			return fail(s, err)
		}
		return next, append(effects, showError(&RestrictedPageError{Detail: d.PageError}))
	}

	if d.Kind == task.KindPageChat {
		return seedPageChat(next, d.PageText, d.PageKind, effects)
	}

	p, err := prompts.ForTask(d, next.Options)
	if err != nil {
		if mErr := next.moveTo(StatusIdle); mErr != nil {
			return fail(s, mErr)
		}
		return next, append(effects, showError(err))
	}

	next.Session = next.Session.Append(conversation.User(p.Text, ""))
	next.Origin = OriginTask
	next.Waiting = PurposePrimary
	next.Busy = true
	if err := next.moveTo(StatusAwaitingModel); err != nil {
		return fail(s, err)
	}
	return next, append(effects,
		Notice{Text: p.Notice},
		SetBusy{Busy: true},
		Infer{Purpose: PurposePrimary, Turns: next.Session.Turns()},
	)
}

// seedPageChat caches page text and waits for the first question. No model
// call is made.
func seedPageChat(next State, text string, kind task.PageKind, effects []Effect) (State, []Effect) {
	if strings.TrimSpace(text) == "" {
		text = noticeNoPageContext
	}
	next.PageText = text
	next.PageKind = kind
	next.Phase = PhasePageChat

	p, err := prompts.ForTask(task.Descriptor{Kind: task.KindPageChat, PageKind: kind}, next.Options)
	notice := noticeOr(p, err, noticePageLoaded)
	if err := next.moveTo(StatusAwaitingUserInput); err != nil {
		return next, append(effects, showError(err))
	}
	return next, append(effects, Notice{Text: notice})
}

func onUserMessage(s State, raw string) (State, []Effect) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return s, nil
	}
	if s.Status == StatusAwaitingModel || s.Busy {
		return s, []Effect{showError(ErrBusy)}
	}

	next := s
	if err := next.moveTo(StatusDispatching); err != nil {
		return fail(s, err)
	}
	next.Origin = OriginChat
	next.RollbackTo = next.Session.Len()
	next.Busy = true
	effects := []Effect{EchoUser{Text: text}, DiscardCompose{}}

	switch {
	case next.Phase == PhasePageChat:
		prompt, err := prompts.PageChat(next.PageText, next.PageKind, text, next.Options)
		if err != nil {
			return fail(s, err)
		}
		next.Session = next.Session.Append(conversation.User(prompt, text))
		next.Waiting = PurposePrimary
		effects = append(effects, SetBusy{Busy: true}, Infer{Purpose: PurposePrimary, Turns: next.Session.Turns()})

	case next.Phase == PhaseFresh || next.Session.Empty():
		classify, err := prompts.Classify(text)
		if err != nil {
			return fail(s, err)
		}
		plan, err := prompts.ProjectPlan("", text)
		notice := noticeOr(plan, err, noticeAnalyzing)
		next.Session = conversation.New().Append(conversation.User(text, ""))
		next.RollbackTo = 0
		next.Phase = PhaseProjectBootstrapping
		next.Question = text
		next.Kind = ""
		next.Waiting = PurposeClassify
		effects = append(effects,
			ForgetProjectStack{},
			Notice{Text: notice},
			SetBusy{Busy: true},
			Infer{Purpose: PurposeClassify, Turns: []conversation.Turn{conversation.User(classify, "")}},
		)

	default:
		next.Session = next.Session.Append(conversation.User(text, ""))
		next.Waiting = PurposePrimary
		effects = append(effects, SetBusy{Busy: true}, Infer{Purpose: PurposePrimary, Turns: next.Session.Turns()})
	}

	if err := next.moveTo(StatusAwaitingModel); err != nil {
		return fail(s, err)
	}
	return next, effects
}

func onReply(s State, text string) (State, []Effect) {
	if s.Status != StatusAwaitingModel {
		return s, nil
	}

	if s.Waiting == PurposeClassify {
		stack := prompts.CleanStack(text)
		plan, err := prompts.ProjectPlan(stack, s.Question)
		if err != nil {
			return onFailure(s, err)
		}
		session, err := s.Session.Rewrite(0, plan.Text)
		if err != nil {
			return onFailure(s, err)
		}
		next := s
		next.Session = session
		next.Stack = stack
		next.Waiting = PurposePrimary
		return next, []Effect{
			SaveProjectStack{Stack: stack},
			Infer{Purpose: PurposePrimary, Turns: next.Session.Turns()},
		}
	}

	next := s
	next.Session = next.Session.Append(conversation.Model(text))
	next.Busy = false
	next.Waiting = ""
	next.Question = ""
	next.Phase = PhaseContinuing

	to := StatusAwaitingUserInput
	if next.Origin == OriginTask && !next.Kind.Continues() {
		to = StatusIdle
	}
	if err := next.moveTo(to); err != nil {
		return fail(s, err)
	}
	effects := []Effect{Reply{Text: text}, SetBusy{Busy: false}}
	return replayPending(next, effects)
}

func onFailure(s State, err error) (State, []Effect) {
	if s.Status != StatusAwaitingModel {
		return s, nil
	}

	next := s
	next.Session = next.Session.Rollback(next.RollbackTo)
	next.Busy = false
	next.Waiting = ""

	to := StatusAwaitingUserInput
	switch {
	case next.Phase == PhaseProjectBootstrapping:
		next.Session = next.Session.Rollback(0)
		next.Phase = PhaseFresh
		next.Stack = ""
		next.Question = ""
		to = StatusIdle
	case next.Phase == PhasePageChat:
		to = StatusAwaitingUserInput
	case next.Origin == OriginTask:
		next.Phase = PhaseFresh
		to = StatusIdle
	}

	if mErr := next.moveTo(to); mErr != nil {
		return fail(s, mErr)
	}
	effects := []Effect{showError(err), SetBusy{Busy: false}}
	return replayPending(next, effects)
}

// replayPending dispatches a descriptor deferred during the call that just settled.
func replayPending(s State, effects []Effect) (State, []Effect) {
	if s.Pending == nil {
		return s, effects
	}
	d := *s.Pending
	s.Pending = nil
	next, more := onTask(s, d)
	return next, append(effects, more...)
}

func onNewProject(s State) (State, []Effect) {
	if s.Status == StatusAwaitingModel {
		return s, []Effect{showError(ErrBusy)}
	}
	next := s
	if err := next.moveTo(StatusIdle); err != nil {
		return fail(s, err)
	}
	next.Session = conversation.New()
	next.Phase = PhaseFresh
	next.Kind = ""
	next.Stack = ""
	next.Question = ""
	next.PageText = ""
	next.PageKind = ""
	next.Origin = ""
	next.RollbackTo = 0
	return next, []Effect{ClearLog{}, DiscardCompose{}, ForgetProjectStack{}, Notice{Text: noticeNewProject}}
}

func onRefresh(s State, ev RefreshPage) (State, []Effect) {
	if s.Status == StatusAwaitingModel {
		return s, []Effect{showError(ErrBusy)}
	}
	if strings.TrimSpace(ev.PageText) == "" {
		if !s.hasPageContext() && s.Phase != PhasePageChat {
			return s, []Effect{Notice{Text: noticePageCleared}}
		}
		next := s
		next.PageText = ""
		next.PageKind = ""
		if next.Phase == PhasePageChat {
			next.Phase = PhaseFresh
			if err := next.moveTo(StatusIdle); err != nil {
				return fail(s, err)
			}
		}
		return next, []Effect{Notice{Text: noticePageCleared}}
	}

	next := s
	if err := next.moveTo(StatusDispatching); err != nil {
		return fail(s, err)
	}
	next.Session = conversation.New()
	next.Kind = task.KindPageChat
	next.Stack = ""
	next.Origin = ""
	next.RollbackTo = 0
	return seedPageChat(next, ev.PageText, ev.PageKind, []Effect{ClearLog{}, DiscardCompose{}})
}

func onSetLanguage(s State, lang string) (State, []Effect) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return s, nil
	}
	next := s
	next.Options.Language = lang
	return next, []Effect{Notice{Text: fmt.Sprintf(noticeLanguageFmt, lang)}}
}
