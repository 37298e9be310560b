package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"parley/internal/banner"
	"parley/internal/chat"
	"parley/internal/config"
	"parley/internal/convo"
	"parley/internal/db"
	"parley/internal/domain"
	"parley/internal/extract"
	"parley/internal/gateway"
	"parley/internal/llm"
	"parley/internal/logging"
	"parley/internal/mcp"
	"parley/internal/prompt"
	"parley/internal/scheduler"
	"parley/internal/store"
	"parley/internal/tools"
	"parley/internal/window"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("parley %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:   "parley",
		Short: "Web chat service with LLM tool calling",
		Long:  "Parley is a web chat service where an LLM answers questions using tools hosted on a remote MCP server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat gateway daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, bm.Version, serveShutdownCh)
		},
	}
	root.AddCommand(serveCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate config and probe the MCP server",
		RunE:  runCheck,
	}
	root.AddCommand(checkCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE:  runInit,
	}
	root.AddCommand(initCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), bm.String())
			return nil
		},
	}
	root.AddCommand(versionCmd)

	return root
}

// ErrMCPDisabled is what tool listing and calling report when the config has
// MCP turned off. The orchestrator then degrades every turn to the
// direct-answer path.
var ErrMCPDisabled = errors.New("mcp is disabled in config")

// disabledTools stands in for the MCP client when MCP is turned off.
type disabledTools struct{}

func (disabledTools) ListTools(ctx context.Context) ([]domain.ToolDefinition, error) {
	return nil, ErrMCPDisabled
}

func (disabledTools) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*mcp.CallResult, error) {
	return nil, ErrMCPDisabled
}

// runServe wires the daemon and blocks until a shutdown signal arrives, or
// until shutdownCh closes (tests set it; production leaves it nil).
func runServe(cmd *cobra.Command, version string, shutdownCh <-chan struct{}) error {
	cfg, err := config.LoadWithEnv()
	if err != nil {
		return err
	}

	banner.Startup(version, &banner.StartupOpts{Writer: cmd.OutOrStdout()})

	logger, logCleanup := logging.Setup(cfg.Log)
	defer func() { _ = logCleanup() }()
	slog.SetDefault(logger)

	sqlDB, err := db.Connect(cfg.Store.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer sqlDB.Close()
	st, err := store.NewSQLiteStore(sqlDB)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	var (
		lister tools.Lister
		caller tools.Caller
		prober gateway.HealthProber
	)
	if cfg.MCP.Enabled {
		client := mcp.NewClient(cfg.MCP.BaseURL, time.Duration(cfg.MCP.Timeout)*time.Millisecond)
		lister, caller, prober = client, client, client
	} else {
		logger.Warn("mcp disabled, turns will answer without tools")
		lister, caller = disabledTools{}, disabledTools{}
	}
	catalog := tools.NewCatalog(lister)
	executor := tools.NewExecutor(caller,
		tools.WithCatalog(catalog),
		tools.WithExecutorLogger(logger),
	)

	provider, err := llm.NewProvider(cfg.LLM, &cfg.Retry)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	var tok domain.Tokenizer
	if tk, tkErr := window.NewTikToken(cfg.Window.Encoding); tkErr != nil {
		logger.Warn("tokenizer unavailable, estimating token counts", "error", tkErr)
		tok = window.NewEstimator()
	} else {
		tok = tk
	}
	gwOpts := []llm.GatewayOption{
		llm.WithLogger(logger),
		llm.WithContextManager(window.NewManager(tok, cfg.Window.MaxTokens)),
	}
	if fallbacks := llm.NewFallbackProviders(cfg.LLM.Fallbacks, &cfg.Retry); len(fallbacks) > 0 {
		gwOpts = append(gwOpts, llm.WithFallbacks(fallbacks...))
	}
	llmGateway := llm.NewGateway(provider, gwOpts...)

	promptOpts := []prompt.Option{prompt.WithLogger(logger)}
	if cfg.Prompts.Dir != "" {
		promptOpts = append(promptOpts, prompt.WithDir(cfg.Prompts.Dir))
	}
	library := prompt.NewLibrary(promptOpts...)
	if cfg.Prompts.Dir != "" {
		watcher := prompt.NewWatcher(library, cfg.Prompts.Dir, logger)
		if watchErr := watcher.Start(); watchErr != nil {
			logger.Warn("prompt watcher not running", "error", watchErr)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	orch := convo.NewOrchestrator(llmGateway, executor, catalog,
		extract.New(extract.WithLogger(logger)), library,
		convo.WithLogger(logger),
		convo.WithMaxAttempts(cfg.Correction.MaxAttempts),
	)
	svc := chat.NewService(st, orch, chat.WithLogger(logger))

	if cfg.Retention.Enabled {
		job, jobErr := scheduler.NewRetentionJob(st, cfg.Retention, logger)
		if jobErr != nil {
			return jobErr
		}
		sched := scheduler.NewScheduler(scheduler.NewRobfigCronEngine(), scheduler.WithLogger(logger))
		if addErr := sched.AddJob(job); addErr != nil {
			return addErr
		}
		sched.Start()
		defer sched.Stop()
	}

	srv, err := gateway.NewServer(&cfg.Gateway, svc, catalog, prober, gateway.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	ctx, stopSignals := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	shutdown := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- srv.Run(shutdown) }()

	// Report readiness once the listener is bound so "ready" means clients
	// can connect.
	for i := 0; i < serveBindWaitIterations; i++ {
		if a := srv.Addr(); a != "" {
			logger.Info("parley ready", "addr", a, "mcp", cfg.MCP.Enabled)
			break
		}
		if srv.ListenErr() != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	wait := ctx.Done()
	if shutdownCh != nil {
		wait = shutdownCh
	}
	select {
	case <-wait:
		close(shutdown)
		return <-done
	case runErr := <-done:
		return runErr
	}
}

// runCheck validates the effective config and, when MCP is enabled, probes
// the MCP server's health endpoint.
func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config: %s\n", config.ResolvePath())

	cfg, err := config.LoadWithEnv()
	if err != nil {
		fmt.Fprintf(out, "config: FAIL: %v\n", err)
		return exitCodeErr(1)
	}
	fmt.Fprintln(out, "config: ok")

	if !cfg.MCP.Enabled {
		fmt.Fprintln(out, "mcp: disabled")
		return nil
	}
	client := mcp.NewClient(cfg.MCP.BaseURL, time.Duration(cfg.MCP.Timeout)*time.Millisecond)
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		fmt.Fprintf(out, "mcp: FAIL: %v\n", err)
		return exitCodeErr(1)
	}
	fmt.Fprintln(out, "mcp: ok")
	return nil
}

// runInit writes the default config file at the resolved path. Refuses to
// overwrite an existing file.
func runInit(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", path)
	return nil
}

// version is set at build time via ldflags for build metadata, e.g.:
//   go build -ldflags "-X main.version=1.0.0" -o parley ./cmd/parley
var version string

// serveShutdownCh is set by tests to unblock runServe without signals. Production leaves it nil.
var serveShutdownCh <-chan struct{}

// serveBindWaitIterations caps the wait for the gateway listener before serve
// reports readiness. Tests may set it to 0 to skip the wait.
var serveBindWaitIterations = 50

// exitCodeErr carries an exit code for the process. When returned from a command, runApp exits with that code.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// runApp runs the root command with the given args and returns the exit code.
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = "dev"
	}
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		if ec, ok := err.(interface{ ExitCode() int }); ok {
			return ec.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
