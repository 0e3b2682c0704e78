package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flowmentor/internal/config"
	"flowmentor/internal/store"
)

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle]",
	Short:     "Show or change the panel theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		current, err := a.kv.Theme(ctx)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), current)
			return nil
		}

		next := current.Toggle()
		if args[0] != "toggle" {
			if next, err = store.ParseTheme(args[0]); err != nil {
				return err
			}
		}
		if err := a.kv.SetTheme(ctx, next); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), next)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, pending task, theme and project stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintf(out, "Config:      %s\n", configPath)
		fmt.Fprintf(out, "State:       %s\n", a.kv.Path())
		fmt.Fprintf(out, "Model:       %s\n", cfg.LLM.Model)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "Credential:  %v\n", err)
		} else {
			fmt.Fprintln(out, "Credential:  ok")
		}
		extractor := "http fetch"
		if a.rod != nil {
			extractor = "chrome devtools"
		}
		fmt.Fprintf(out, "Extraction:  %s\n", extractor)

		if d, ok, err := a.mailbox.Peek(ctx); err != nil {
			return err
		} else if ok {
			fmt.Fprintf(out, "Pending:     %s\n", d)
		} else {
			fmt.Fprintln(out, "Pending:     none")
		}

		theme, err := a.kv.Theme(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Theme:       %s\n", theme)

		stack, ok, err := a.kv.ProjectStack(ctx)
		if err != nil {
			return err
		}
		if !ok {
			stack = "(none)"
		}
		fmt.Fprintf(out, "Stack:       %s\n", stack)
		fmt.Fprintf(out, "Translate:   %s\n", cfg.Panel.TranslateLanguage)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		c := config.DefaultConfig()
		c.LLM.APIKey = config.PlaceholderAPIKey
		if err := c.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Set llm.api_key or GEMINI_API_KEY before opening the panel.\n", configPath)
		return nil
	},
}
