package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/clamp-sh/clamp/internal/config"
	"github.com/clamp-sh/clamp/pkg/app"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configValidateCmd(), configInitCmd())
	return cmd
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration OK (%s)\n", args[0])
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = "clamp.yaml"
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", out)
			}

			answers := initAnswers{
				DataDir:  app.DefaultDataDir(),
				Bind:     "127.0.0.1:8080",
				Kind:     "chars",
				Warning:  "60000",
				Critical: "80000",
				Backend:  "sqlite",
			}
			if err := initForm(&answers).Run(); err != nil {
				return err
			}

			rendered := renderConfig(answers)
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(out, []byte(rendered), 0o600); err != nil {
				return err
			}

			// Round-trip through the loader so a broken template never
			// ships silently.
			cfg, err := config.Load(out)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Destination file (default clamp.yaml)")
	return cmd
}

type initAnswers struct {
	DataDir     string
	Bind        string
	BearerToken string
	Kind        string
	Model       string
	Warning     string
	Critical    string
	Backend     string
}

func initForm(a *initAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Description("Where the eviction archive database lives").
				Value(&a.DataDir),
			huh.NewInput().
				Title("Gateway bind address").
				Value(&a.Bind),
			huh.NewInput().
				Title("Admin bearer token").
				Description("Leave empty to disable the admin API").
				EchoMode(huh.EchoModePassword).
				Value(&a.BearerToken),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Token estimator").
				Options(
					huh.NewOption("Character ratio (offline)", "chars"),
					huh.NewOption("Tiktoken (exact BPE counts)", "tiktoken"),
				).
				Value(&a.Kind),
			huh.NewInput().
				Title("Tokenizer model").
				Description("Only used by the tiktoken estimator").
				Value(&a.Model),
			huh.NewInput().
				Title("Warning threshold (tokens)").
				Validate(validInt).
				Value(&a.Warning),
			huh.NewInput().
				Title("Critical threshold (tokens)").
				Validate(validInt).
				Value(&a.Critical),
			huh.NewSelect[string]().
				Title("Archive backend").
				Options(
					huh.NewOption("SQLite (persistent)", "sqlite"),
					huh.NewOption("In-memory", "memory"),
				).
				Value(&a.Backend),
		),
	)
}

func validInt(s string) error {
	if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	return nil
}

func renderConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("version: \"1\"\n")
	fmt.Fprintf(&b, "data_dir: %q\n", a.DataDir)
	b.WriteString("\nestimator:\n")
	fmt.Fprintf(&b, "  kind: %s\n", a.Kind)
	if a.Kind == "tiktoken" {
		fmt.Fprintf(&b, "  model: %q\n", a.Model)
	}
	b.WriteString("\nengine:\n")
	fmt.Fprintf(&b, "  warning_tokens: %s\n", strings.TrimSpace(a.Warning))
	fmt.Fprintf(&b, "  critical_tokens: %s\n", strings.TrimSpace(a.Critical))
	b.WriteString("  tool_result_ttl: 5m\n")
	b.WriteString("\narchive:\n")
	fmt.Fprintf(&b, "  backend: %s\n", a.Backend)
	b.WriteString("\ngateway:\n")
	fmt.Fprintf(&b, "  bind: %q\n", a.Bind)
	if a.BearerToken != "" {
		b.WriteString("  auth:\n")
		fmt.Fprintf(&b, "    bearer_token: %q\n", a.BearerToken)
	}
	return b.String()
}
