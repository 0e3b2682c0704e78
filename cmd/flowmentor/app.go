package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"flowmentor/internal/dispatch"
	"flowmentor/internal/extract"
	"flowmentor/internal/handoff"
	"flowmentor/internal/inference"
	"flowmentor/internal/panel"
	"flowmentor/internal/prompts"
	"flowmentor/internal/store"
	"flowmentor/internal/task"
)

var useBrowser bool

// app holds the collaborators shared by subcommands.
type app struct {
	kv        *store.KV
	mailbox   *handoff.StoreMailbox
	extractor extract.Extractor
	rod       *extract.RodExtractor
}

func openApp() (*app, error) {
	kv, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	a := &app{kv: kv, mailbox: handoff.NewStoreMailbox(kv)}

	if useBrowser || cfg.Browser.DebuggerURL != "" {
		a.rod = extract.NewRodExtractor(extract.RodConfig{
			DebuggerURL:       cfg.Browser.DebuggerURL,
			Headless:          cfg.Browser.Headless,
			NavigationTimeout: cfg.GetNavigationTimeout(),
		})
		a.extractor = a.rod
	} else {
		a.extractor = extract.NewHTTPExtractor(&http.Client{}, cfg.GetNavigationTimeout())
	}
	return a, nil
}

func (a *app) Close() {
	if a.rod != nil {
		if err := a.rod.Close(); err != nil {
			logger.Warn("close browser", zap.Error(err))
		}
	}
	if err := a.kv.Close(); err != nil {
		logger.Warn("close state database", zap.Error(err))
	}
}

// resolveTab fills in the active tab when only a live browser can tell us
// what the user is looking at.
func (a *app) resolveTab(ctx context.Context, tab extract.Tab) (extract.Tab, error) {
	if tab.ID != "" || tab.URL != "" {
		return tab, nil
	}
	if a.rod == nil {
		return tab, nil
	}
	return a.rod.ActiveTab(ctx)
}

func promptOptions() prompts.Options {
	return prompts.Options{
		Language:          cfg.Panel.TranslateLanguage,
		PageContextLimit:  cfg.Panel.PageContextLimit,
		HTMLSnapshotLimit: cfg.Panel.HTMLSnapshotLimit,
	}
}

// newRuntime builds the panel runtime. A configuration problem does not fail
// here: it is handed to the runtime, which disables the panel.
func newRuntime(ctx context.Context, mb handoff.Mailbox, stacks panel.StackStore, r panel.Renderer) *panel.Runtime {
	preflight := cfg.Validate()

	var client inference.Client
	if preflight == nil {
		gc, err := inference.NewGeminiClient(ctx, inference.GeminiConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.GetLLMTimeout(),
		})
		if err != nil {
			preflight = fmt.Errorf("gemini client: %w", err)
		} else {
			client = gc
		}
	}

	return panel.NewRuntime(mb, client, stacks, r, panel.Options{
		Prompts:   promptOptions(),
		Preflight: preflight,
	})
}

// refresher re-extracts the page for the panel's /refresh command.
func (a *app) refresher(url string) func(context.Context) (dispatch.RefreshPage, error) {
	return func(ctx context.Context) (dispatch.RefreshPage, error) {
		tab, err := a.resolveTab(ctx, extract.Tab{URL: url})
		if err != nil {
			return dispatch.RefreshPage{}, err
		}
		if tab.ID == "" && tab.URL == "" {
			return dispatch.RefreshPage{}, fmt.Errorf("no page to refresh: pass --url or --browser")
		}
		text, err := a.extractor.ExtractText(ctx, tab)
		if err != nil {
			return dispatch.RefreshPage{}, err
		}
		return dispatch.RefreshPage{PageText: text, PageKind: task.ClassifyURL(tab.URL)}, nil
	}
}
