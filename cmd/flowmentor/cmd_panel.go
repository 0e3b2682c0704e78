package main

import (
	"bufio"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flowmentor/cmd/flowmentor/ui"
	"flowmentor/internal/dispatch"
	"flowmentor/internal/handoff"
	"flowmentor/internal/logging"
	"flowmentor/internal/panel"
	"flowmentor/internal/store"
)

var panelURL string

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Open the interactive side panel",
	Long: `Opens the side panel. A task left in the mailbox by "flowmentor trigger"
is consumed on start, and new ones are picked up as they arrive.

Type to chat. Slash commands: /new, /refresh, /lang <language>, /theme, /help.`,
	RunE: runPanel,
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the panel without consuming a pending task",
	Long: `Like clicking the toolbar icon: any task waiting in the mailbox is
discarded first, so the panel starts on a blank conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		err = handoff.Discard(cmd.Context(), a.mailbox)
		a.Close()
		if err != nil {
			return err
		}
		return runPanel(cmd, args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the panel headless, printing the transcript to stdout",
	Long: `Consumes tasks like the interactive panel but writes replies as plain
text. Lines read from stdin are sent as chat messages.`,
	RunE: runHeadless,
}

func init() {
	panelCmd.Flags().StringVar(&panelURL, "url", "", "Page URL used by /refresh when no browser is attached")
	openCmd.Flags().StringVar(&panelURL, "url", "", "Page URL used by /refresh when no browser is attached")
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runPanel(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	theme, err := a.kv.Theme(ctx)
	if err != nil {
		logger.Warn("read theme", zap.Error(err))
	}

	var rt *panel.Runtime
	model := ui.NewModel(ctx, theme, ui.Handlers{
		Submit: func(ctx context.Context, ev dispatch.Event) error {
			return rt.Submit(ctx, ev)
		},
		Refresh: a.refresher(panelURL),
		ToggleTheme: func(ctx context.Context) (store.Theme, error) {
			t, err := a.kv.Theme(ctx)
			if err != nil {
				return t, err
			}
			next := t.Toggle()
			return next, a.kv.SetTheme(ctx, next)
		},
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	rt = newRuntime(ctx, a.mailbox, a.kv, ui.NewProgramRenderer(p))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		err := rt.Run(gctx)
		if err != nil && errors.Is(err, rt.Preflight()) {
			// Keep the UI up so the disabled state is visible.
			return nil
		}
		if err != nil {
			p.Quit()
		}
		return err
	})
	g.Go(func() error {
		_, err := p.Run()
		cancel()
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		p.Quit()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return rt.Preflight()
}

func runHeadless(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rt := newRuntime(ctx, a.mailbox, a.kv, panel.NewWriterRenderer(cmd.OutOrStdout()))
	if err := rt.Preflight(); err != nil {
		logging.Get(logging.CategoryPanel).Error("Headless panel disabled: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.Run(gctx)
	})

	// Not joined: a blocked stdin read cannot be interrupted.
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-gctx.Done():
				return
			}
		}
	}()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line := <-lines:
				if err := rt.Submit(gctx, dispatch.UserMessage{Text: line}); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
			}
		}
	})

	return g.Wait()
}
