// Package cli wires the agent and exposes the command surface:
// init, run, status, tools, config, config-show, and config-reset.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cairnlabs/cairn"
	"github.com/cairnlabs/cairn/internal/config"
	"github.com/cairnlabs/cairn/observer"
	"github.com/cairnlabs/cairn/provider/ollama"
	"github.com/cairnlabs/cairn/store/sqlite"
	"github.com/cairnlabs/cairn/tools/analyze"
	"github.com/cairnlabs/cairn/tools/file"
	"github.com/cairnlabs/cairn/tools/gitinfo"
	"github.com/cairnlabs/cairn/tools/scaffold"
	"github.com/cairnlabs/cairn/tools/search"
	"github.com/cairnlabs/cairn/tools/shell"
)

// app holds everything a command needs after wiring.
type app struct {
	cfg      config.Config
	agent    *cairn.Agent
	model    cairn.ModelClient
	registry *cairn.Registry
	store    *sqlite.Store
	cache    *cairn.CacheService
	git      cairn.Git
	shutdown func(context.Context) error
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	var (
		configPath   string
		debug        bool
		autoContinue bool
	)

	root := &cobra.Command{
		Use:           "cairn",
		Short:         "Local coding agent driven by a local model endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to cairn.toml")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging and model audit")
	root.PersistentFlags().BoolVar(&autoContinue, "yes", false, "auto-accept all confirmation prompts")

	load := func() config.Config {
		cfg := config.Load(configPath)
		if debug {
			cfg.Debug = true
		}
		if autoContinue {
			cfg.Execution.AutoContinue = true
		}
		return cfg
	}

	root.AddCommand(
		newInitCmd(load),
		newRunCmd(load),
		newStatusCmd(load),
		newToolsCmd(load),
		newConfigCmd(&configPath),
		newConfigShowCmd(load),
		newConfigResetCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// wire builds the full agent stack from config.
func wire(ctx context.Context, cfg config.Config) (*app, error) {
	logger := newLogger(cfg.Debug)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store := sqlite.New(cfg.Database.DBPath, sqlite.WithLogger(logger))
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	workdir, err := os.Getwd()
	if err != nil {
		store.Close()
		return nil, err
	}
	git := cairn.NewGit(workdir)
	cache := cairn.NewCacheService(store, git, workdir, cairn.WithCacheLogger(logger))

	var model cairn.ModelClient = ollama.New(cfg.Model.Endpoint, cfg.Model.Name,
		ollama.WithTemperature(cfg.Model.Temperature),
		ollama.WithMaxTokens(cfg.Model.MaxTokens),
		ollama.WithLogger(logger))
	model = cairn.WithRetry(model, cairn.WithRetryLogger(logger))

	registry := cairn.NewRegistry(cairn.WithRegistryLogger(logger))
	registry.Register(file.New(workdir, cache))
	registry.Register(search.New(workdir))
	registry.Register(gitinfo.New(git))
	registry.Register(scaffold.New(workdir))
	registry.Register(shell.New(workdir, cfg.Execution.TestCommand))
	registry.Register(analyze.New(model, cache))

	var tracer cairn.Tracer
	shutdown := func(context.Context) error { return nil }
	if cfg.Observer.Enabled {
		sd, err := observer.Init(ctx)
		if err != nil {
			logger.Warn("tracing disabled, exporter init failed", "error", err)
		} else {
			tracer = observer.NewTracer()
			shutdown = sd
		}
	}

	opts := []cairn.AgentOption{
		cairn.WithLogger(logger),
		cairn.WithConfirmFunc(stdinConfirm),
		cairn.WithAgentAutoContinue(cfg.Execution.AutoContinue),
		cairn.WithAgentMaxSummaries(cfg.Context.MaxSummaries),
		cairn.WithDebug(cfg.Debug),
	}
	if tracer != nil {
		opts = append(opts, cairn.WithTracer(tracer))
	}
	agent := cairn.NewAgent(model, registry, store, git, opts...)

	return &app{
		cfg:      cfg,
		agent:    agent,
		model:    model,
		registry: registry,
		store:    store,
		cache:    cache,
		git:      git,
		shutdown: shutdown,
	}, nil
}

func (a *app) close(ctx context.Context) {
	_ = a.shutdown(ctx)
	_ = a.store.Close()
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// stdinConfirm prompts on stderr and reads one answer line from stdin.
func stdinConfirm(message string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", message)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newInitCmd(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database, clean stale cache entries, and probe the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := wire(ctx, load())
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if n, err := a.cache.Cleanup(ctx, a.cfg.Context.CacheKeepLastN); err == nil && n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale cache entries\n", n)
			}
			if !a.model.Available(ctx) {
				return fmt.Errorf("model endpoint %s is not reachable", a.cfg.Model.Endpoint)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ready. Model %q at %s\n", a.cfg.Model.Name, a.cfg.Model.Endpoint)
			return nil
		},
	}
}

func newRunCmd(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run [prompt]",
		Short: "Process one prompt, or start an interactive session when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := wire(ctx, load())
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if len(args) > 0 {
				summary, err := a.agent.ProcessRequest(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), summary)
				return nil
			}
			return repl(ctx, cmd, a)
		},
	}
}

// repl reads prompts line by line until EOF or "exit".
func repl(ctx context.Context, cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "cairn interactive session. Empty line or \"exit\" to quit.")
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		prompt := strings.TrimSpace(sc.Text())
		if prompt == "" || prompt == "exit" || prompt == "quit" {
			return nil
		}
		summary, err := a.agent.ProcessRequest(ctx, prompt)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			continue
		}
		fmt.Fprintln(out, summary)
	}
}

func newStatusCmd(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show repository state and recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := wire(ctx, load())
			if err != nil {
				return err
			}
			defer a.close(ctx)
			return runStatus(ctx, cmd.OutOrStdout(), a.git, a.store)
		},
	}
}

// runStatus renders the status report from the git and session-store
// interfaces so it can be exercised with fakes.
func runStatus(ctx context.Context, out io.Writer, git cairn.Git, store cairn.SessionStore) error {
	commit := cairn.UnknownCommit
	if head, err := git.Head(ctx); err == nil {
		commit = head
	}
	fmt.Fprintf(out, "commit: %s\n", commit)

	files, _ := git.ModifiedFiles(ctx)
	fmt.Fprintf(out, "modified files: %d\n", len(files))
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f)
	}

	if commits, err := git.Log(ctx, 5); err == nil && len(commits) > 0 {
		fmt.Fprintln(out, "recent commits:")
		for _, c := range commits {
			fmt.Fprintf(out, "  %s\n", c)
		}
	}

	if touched, err := store.LastModifiedFiles(ctx); err == nil && len(touched) > 0 {
		fmt.Fprintf(out, "files touched last session: %s\n", strings.Join(touched, ", "))
	}

	recs, err := store.Sessions(ctx, 5)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "recent sessions: %d\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(out, "  #%d %s %s\n", r.ID, r.Timestamp, firstLine(r.Prompt))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80] + "..."
	}
	return s
}

func newToolsCmd(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := wire(ctx, load())
			if err != nil {
				return err
			}
			defer a.close(ctx)

			out := cmd.OutOrStdout()
			for _, d := range a.registry.Definitions() {
				marker := " "
				if d.Destructive {
					marker = "!"
				}
				fmt.Fprintf(out, "%s %-24s %s\n", marker, d.Name, d.Description)
			}
			return nil
		},
	}
}

func newConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show where configuration is read from",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				path = "cairn.toml"
			}
			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(out, "config file: %s\n", path)
			} else {
				fmt.Fprintf(out, "config file: %s (not present, defaults apply)\n", path)
			}
			fmt.Fprintln(out, "env overrides: CAIRN_MODEL_ENDPOINT, CAIRN_MODEL_NAME, CAIRN_MODEL_TEMPERATURE,")
			fmt.Fprintln(out, "  CAIRN_MODEL_MAX_TOKENS, CAIRN_DB_PATH, CAIRN_INDEX_FILE, CAIRN_AUTO_CONTINUE,")
			fmt.Fprintln(out, "  CAIRN_OBSERVER_ENABLED, CAIRN_DEBUG")
			return nil
		},
	}
}

func newConfigShowCmd(load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config-show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.Describe(load()))
			return nil
		},
	}
}

func newConfigResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config-reset",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				path = "cairn.toml"
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := f.WriteString(config.Describe(config.Default())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote defaults to %s\n", path)
			return nil
		},
	}
}
