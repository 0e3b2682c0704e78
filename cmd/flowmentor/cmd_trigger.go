package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flowmentor/internal/extract"
	"flowmentor/internal/handoff"
	"flowmentor/internal/panel"
	"flowmentor/internal/task"
	"flowmentor/internal/trigger"
)

var (
	triggerURL       string
	triggerTab       string
	triggerSelection string

	serveAddr  string
	servePanel bool
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <action>",
	Short: "Fire a context-menu action and leave the task for the panel",
	Long: `Builds a task the way a context-menu click does and writes it to the
mailbox. The panel picks it up immediately if it is running, or on its next
start otherwise.

Run "flowmentor actions" for the list of actions.

Examples:
  flowmentor trigger explainCode --selection 'for i in range(10) print(i)'
  flowmentor trigger summarizePage --url https://go.dev/doc/effective_go
  flowmentor trigger openChatWithContext --browser`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		tab, err := a.resolveTab(ctx, extract.Tab{ID: triggerTab, URL: triggerURL})
		if err != nil {
			return fmt.Errorf("find active tab: %w", err)
		}

		d, err := trigger.New(a.mailbox, a.extractor).Fire(ctx, trigger.Request{
			Action:    task.Action(args[0]),
			Tab:       tab,
			Selection: triggerSelection,
		})
		if errors.Is(err, trigger.ErrNoSelection) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to do: this action needs --selection.")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Debug("task written", zap.String("kind", string(d.Kind)), zap.Bool("restricted", d.Restricted))
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %s for the panel.\n", d.Kind)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve triggers over HTTP",
	Long: `Listens for POST /triggers/{action} with an optional JSON body
{"url": "...", "tab_id": "...", "selection": "..."} and writes the task to the
mailbox. With --panel a headless panel runs in the same process and shares an
in-memory mailbox.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		var mb handoff.Mailbox = a.mailbox
		g, gctx := errgroup.WithContext(ctx)
		if servePanel {
			slot := handoff.NewSlot()
			mb = slot
			rt := newRuntime(gctx, slot, a.kv, panel.NewWriterRenderer(cmd.OutOrStdout()))
			g.Go(func() error { return rt.Run(gctx) })
		}

		srv := trigger.NewServer(trigger.New(mb, a.extractor), addr)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
		return g.Wait()
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List trigger actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, s := range task.Actions() {
			var needs []string
			if s.Requires(task.NeedSelection) {
				needs = append(needs, "selection")
			}
			if s.Requires(task.NeedPageText) {
				needs = append(needs, "page text")
			}
			if s.Requires(task.NeedPageHTML) {
				needs = append(needs, "page html")
			}
			where := "menu"
			if s.PanelButton {
				where = "button"
			}
			fmt.Fprintf(out, "%-22s %-7s %-40s needs %s\n", s.Action, where, s.Title, strings.Join(needs, ", "))
		}
		return nil
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerURL, "url", "", "Page URL")
	triggerCmd.Flags().StringVar(&triggerTab, "tab", "", "DevTools target ID (with --browser)")
	triggerCmd.Flags().StringVarP(&triggerSelection, "selection", "s", "", "Selected text")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
	serveCmd.Flags().BoolVar(&servePanel, "panel", false, "Run a headless panel in the same process")
}
