package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"flowmentor/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const textScript = `() => {
	const el = document.querySelector('main') || document.querySelector('article') || document.body;
	return el ? el.innerText : '';
}`

const selectionScript = `() => {
	const sel = window.getSelection();
	return sel ? sel.toString() : '';
}`

// RodConfig configures the live-browser extractor.
type RodConfig struct {
	// DebuggerURL connects to a running Chrome (ws://...). Empty launches one.
	DebuggerURL       string
	Headless          bool
	NavigationTimeout time.Duration
}

// RodExtractor reads pages from a live Chrome over the DevTools protocol.
type RodExtractor struct {
	cfg        RodConfig
	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
}

// NewRodExtractor returns an extractor that connects lazily.
func NewRodExtractor(cfg RodConfig) *RodExtractor {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &RodExtractor{cfg: cfg}
}

// Start connects to an existing Chrome or launches a new one.
func (r *RodExtractor) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return nil
		}
		logging.Get(logging.CategoryExtract).Warn("Stale browser connection detected, reconnecting")
		_ = r.browser.Close()
		r.browser = nil
		r.controlURL = ""
	}

	controlURL := r.cfg.DebuggerURL
	if controlURL == "" {
		url, err := launcher.New().Headless(r.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	r.browser = browser
	r.controlURL = controlURL
	logging.Extract("Connected to browser at %s", controlURL)
	return nil
}

// Close disconnects from the browser.
func (r *RodExtractor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	r.controlURL = ""
	return err
}

func (r *RodExtractor) ensureStarted(ctx context.Context) (*rod.Browser, error) {
	r.mu.Lock()
	b := r.browser
	r.mu.Unlock()
	if b != nil {
		return b, nil
	}
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.browser, nil
}

// ActiveTab returns the first open page that is not a restricted origin.
func (r *RodExtractor) ActiveTab(ctx context.Context) (Tab, error) {
	b, err := r.ensureStarted(ctx)
	if err != nil {
		return Tab{}, err
	}
	pages, err := b.Pages()
	if err != nil {
		return Tab{}, fmt.Errorf("list pages: %w", err)
	}
	var first *Tab
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		tab := Tab{ID: string(p.TargetID), URL: info.URL}
		if !Restricted(info.URL) {
			return tab, nil
		}
		if first == nil {
			first = &tab
		}
	}
	if first != nil {
		return *first, nil
	}
	return Tab{}, fmt.Errorf("no open tabs")
}

// page resolves tab to a page. The returned release func closes pages this
// call opened.
func (r *RodExtractor) page(ctx context.Context, tab Tab) (*rod.Page, func(), error) {
	if err := checkRestricted(tab); err != nil {
		return nil, nil, err
	}
	b, err := r.ensureStarted(ctx)
	if err != nil {
		return nil, nil, err
	}

	noop := func() {}
	if tab.ID != "" {
		p, err := b.PageFromTarget(proto.TargetTargetID(tab.ID))
		if err != nil {
			return nil, nil, fmt.Errorf("attach %s: %w", tab.ID, err)
		}
		return p.Context(ctx), noop, nil
	}
	if tab.URL == "" {
		return nil, nil, fmt.Errorf("tab has neither id nor url")
	}

	if pages, err := b.Pages(); err == nil {
		for _, p := range pages {
			if info, err := p.Info(); err == nil && strings.TrimRight(info.URL, "/") == strings.TrimRight(tab.URL, "/") {
				return p.Context(ctx), noop, nil
			}
		}
	}

	p, err := b.Page(proto.TargetCreateTarget{URL: tab.URL})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", tab.URL, err)
	}
	release := func() { _ = p.Close() }
	if err := p.Timeout(r.cfg.NavigationTimeout).WaitLoad(); err != nil {
		release()
		return nil, nil, fmt.Errorf("load %s: %w", tab.URL, err)
	}
	return p.Context(ctx), release, nil
}

func (r *RodExtractor) eval(ctx context.Context, tab Tab, js string) (string, error) {
	p, release, err := r.page(ctx, tab)
	if err != nil {
		return "", err
	}
	defer release()

	res, err := p.Evaluate(&rod.EvalOptions{JS: js, ByValue: true})
	if err != nil {
		return "", fmt.Errorf("evaluate on %s: %w", tab, err)
	}
	if res == nil || res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

// ExtractText returns the innerText of main, article or body.
func (r *RodExtractor) ExtractText(ctx context.Context, tab Tab) (string, error) {
	timer := logging.StartTimer(logging.CategoryExtract, "rod.ExtractText")
	defer timer.Stop()
	return r.eval(ctx, tab, textScript)
}

// ExtractSelection returns the page's current text selection.
func (r *RodExtractor) ExtractSelection(ctx context.Context, tab Tab) (string, error) {
	return r.eval(ctx, tab, selectionScript)
}

// ExtractHTML returns the document's outer HTML.
func (r *RodExtractor) ExtractHTML(ctx context.Context, tab Tab) (string, error) {
	timer := logging.StartTimer(logging.CategoryExtract, "rod.ExtractHTML")
	defer timer.Stop()

	p, release, err := r.page(ctx, tab)
	if err != nil {
		return "", err
	}
	defer release()

	src, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read html of %s: %w", tab, err)
	}
	return src, nil
}
