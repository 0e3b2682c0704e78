// Package panel runs the side-panel side of FlowMentor: it consumes task
// descriptors from the mailbox, feeds events to the dispatcher and carries
// out the effects it returns.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flowmentor/internal/dispatch"
	"flowmentor/internal/handoff"
	"flowmentor/internal/inference"
	"flowmentor/internal/logging"
	"flowmentor/internal/prompts"
)

// StackStore persists the classified project stack.
type StackStore interface {
	SetProjectStack(ctx context.Context, stack string) error
	ForgetProjectStack(ctx context.Context) error
}

// Options configure a Runtime.
type Options struct {
	Prompts prompts.Options
	// Preflight is the configuration check result. A non-nil value disables
	// the panel before anything is read or sent.
	Preflight error
}

type callResult struct {
	purpose dispatch.Purpose
	text    string
	err     error
	elapsed time.Duration
}

// Runtime owns the dispatcher state. Run processes one event at a time;
// model calls run in the background and report back as events.
type Runtime struct {
	mailbox handoff.Mailbox
	client  inference.Client
	stacks  StackStore
	render  Renderer
	opts    Options

	input   chan dispatch.Event
	results chan callResult
	calls   sync.WaitGroup

	mu    sync.RWMutex
	state dispatch.State
}

// NewRuntime wires a runtime. client may be nil when Preflight is non-nil.
func NewRuntime(mb handoff.Mailbox, client inference.Client, stacks StackStore, r Renderer, opts Options) *Runtime {
	return &Runtime{
		mailbox: mb,
		client:  client,
		stacks:  stacks,
		render:  r,
		opts:    opts,
		input:   make(chan dispatch.Event),
		results: make(chan callResult, 1),
		state:   dispatch.NewState(opts.Prompts),
	}
}

// State returns a snapshot of the dispatcher state.
func (r *Runtime) State() dispatch.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Preflight returns the configuration error that disables the panel, if any.
func (r *Runtime) Preflight() error {
	return r.opts.Preflight
}

// Submit delivers a panel event (typed message, new project, refresh, language).
func (r *Runtime) Submit(ctx context.Context, ev dispatch.Event) error {
	switch ev.(type) {
	case dispatch.UserMessage, dispatch.NewProject, dispatch.RefreshPage, dispatch.SetLanguage:
	default:
		return fmt.Errorf("panel: %T cannot be submitted", ev)
	}
	select {
	case r.input <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is done. A failed preflight disables the panel and is
// returned immediately; the mailbox is left untouched.
func (r *Runtime) Run(ctx context.Context) error {
	if r.opts.Preflight != nil {
		logging.Get(logging.CategoryPanel).Error("Panel disabled: %v", r.opts.Preflight)
		r.render.Disable(r.opts.Preflight.Error())
		return r.opts.Preflight
	}
	if r.client == nil {
		err := errors.New("panel: no inference client")
		r.render.Disable(err.Error())
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		r.calls.Wait()
	}()

	notes, err := r.mailbox.Observe(loopCtx)
	if err != nil {
		return fmt.Errorf("observe mailbox: %w", err)
	}

	logging.Panel("Panel runtime started")
	r.consume(loopCtx)

	for {
		select {
		case <-ctx.Done():
			logging.Panel("Panel runtime stopping: %v", ctx.Err())
			return nil

		case _, ok := <-notes:
			if !ok {
				notes = nil
				continue
			}
			r.consume(loopCtx)

		case ev := <-r.input:
			r.step(loopCtx, ev)

		case res := <-r.results:
			logging.Audit().InferenceResult(string(res.purpose), res.elapsed, res.err)
			if res.err != nil {
				r.step(loopCtx, dispatch.ModelFailed{Err: res.err})
			} else {
				r.step(loopCtx, dispatch.ModelReplied{Text: res.text})
			}
		}
	}
}

// consume reads the pending descriptor, clearing it before dispatch so a
// descriptor that fails is never processed twice.
func (r *Runtime) consume(ctx context.Context) {
	d, ok, err := r.mailbox.ReadAndClear(ctx)
	if err != nil {
		logging.Get(logging.CategoryPanel).Error("Read task: %v", err)
		return
	}
	if !ok {
		return
	}
	logging.Panel("Dispatching %s", d)
	if r.State().Status == dispatch.StatusAwaitingModel {
		logging.Audit().Log(logging.AuditEvent{EventType: logging.AuditTaskDeferred, Kind: string(d.Kind), Success: true})
	}
	r.step(ctx, dispatch.TaskArrived{Descriptor: d})
}

func (r *Runtime) step(ctx context.Context, ev dispatch.Event) {
	r.mu.Lock()
	prev := r.state
	next, effects := dispatch.Step(prev, ev)
	r.state = next
	r.mu.Unlock()

	logging.DispatchDebug("%T: %s/%s -> %s/%s, %d effects", ev, prev.Status, prev.Phase, next.Status, next.Phase, len(effects))
	auditSession(prev, next)

	for _, eff := range effects {
		r.apply(ctx, next, eff)
	}
}

func auditSession(prev, next dispatch.State) {
	audit := logging.AuditWithSession(next.Session.ID)
	switch {
	case prev.Session.ID != next.Session.ID:
		logging.Session("Session reset: %s -> %s", prev.Session.ID, next.Session.ID)
		audit.Log(logging.AuditEvent{EventType: logging.AuditSessionReset, Kind: string(next.Kind), Success: true})
	case next.Session.Len() < prev.Session.Len():
		logging.Session("Session rolled back: %d -> %d turns", prev.Session.Len(), next.Session.Len())
		audit.SessionRollback(prev.Session.Len(), next.Session.Len())
	case prev.Stack == "" && next.Stack != "":
		audit.Log(logging.AuditEvent{EventType: logging.AuditSessionRewrite, Success: true, Message: "first turn rewritten for " + next.Stack})
	}
}

func (r *Runtime) apply(ctx context.Context, st dispatch.State, eff dispatch.Effect) {
	switch e := eff.(type) {
	case dispatch.Notice:
		r.render.Notice(e.Text)
	case dispatch.Reply:
		r.render.Reply(e.Text)
	case dispatch.ShowError:
		logging.Get(logging.CategoryDispatch).Warn("Dispatch error: %v", e.Err)
		r.render.Error(e.Message)
	case dispatch.EchoUser:
		r.render.User(e.Text)
	case dispatch.SetBusy:
		r.render.SetBusy(e.Busy)
	case dispatch.DiscardCompose:
		r.render.DiscardCompose()
	case dispatch.ClearLog:
		r.render.Clear()
	case dispatch.SaveProjectStack:
		if err := r.stacks.SetProjectStack(ctx, e.Stack); err != nil {
			logging.Get(logging.CategoryPanel).Warn("Save project stack: %v", err)
		}
		logging.AuditWithSession(st.Session.ID).Log(logging.AuditEvent{
			EventType: logging.AuditStackClassified,
			Success:   true,
			Message:   e.Stack,
		})
	case dispatch.ForgetProjectStack:
		if err := r.stacks.ForgetProjectStack(ctx); err != nil {
			logging.Get(logging.CategoryPanel).Warn("Forget project stack: %v", err)
		}
	case dispatch.Infer:
		r.infer(ctx, st.Session.ID, e)
	default:
		logging.Get(logging.CategoryPanel).Warn("Unhandled effect %T", eff)
	}
}

func (r *Runtime) infer(ctx context.Context, sessionID string, e dispatch.Infer) {
	logging.AuditWithSession(sessionID).Log(logging.AuditEvent{
		EventType: logging.AuditInferenceRequest,
		Success:   true,
		Fields:    map[string]interface{}{"purpose": string(e.Purpose), "turns": len(e.Turns)},
	})

	r.calls.Add(1)
	go func() {
		defer r.calls.Done()
		start := time.Now()
		text, err := r.client.Send(ctx, e.Turns)
		res := callResult{purpose: e.Purpose, text: text, err: err, elapsed: time.Since(start)}
		select {
		case r.results <- res:
		case <-ctx.Done():
		}
	}()
}
