// Torque is an AI assistant for car enthusiasts.
//
// It exposes a chat API with SSE streaming, a per-caller balance and
// usage ledger, and an operational WebSocket event feed. Configuration
// is loaded from a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	torque serve              Start the API server
//	torque ask <question>     Ask a single question (for testing)
//	torque version            Print version and build information
//	torque -o json version    Output version information as JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/torqueworks/torque/internal/agent"
	"github.com/torqueworks/torque/internal/api"
	"github.com/torqueworks/torque/internal/buildinfo"
	"github.com/torqueworks/torque/internal/config"
	"github.com/torqueworks/torque/internal/convo"
	"github.com/torqueworks/torque/internal/domains"
	"github.com/torqueworks/torque/internal/events"
	"github.com/torqueworks/torque/internal/evidence"
	"github.com/torqueworks/torque/internal/llm"
	"github.com/torqueworks/torque/internal/plan"
	"github.com/torqueworks/torque/internal/tools"
	"github.com/torqueworks/torque/internal/usage"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the torque command. All OS-level
// dependencies are injected as parameters so the lifecycle can be driven
// from tests. Arguments are parsed by hand: the flag package relies on
// package-level globals, and our argument surface is small enough that
// manual parsing is clearer than bringing in a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: torque ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Torque - AI assistant for car enthusiasts")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: torque [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/torque/config.yaml, /etc/torque/config.yaml")
	return nil
}

// runAsk handles the "torque ask <question>" subcommand. It boots a
// minimal orchestrator (no persistence, no balance gating, no event
// bus) and answers one question on stdout. Useful for smoke tests
// without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}

	question := strings.Join(args, " ")

	orch := agent.New(logger, agent.Options{
		Client:     llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger),
		Classifier: domains.NewClassifier(cfg.Domains),
		Executor:   newExecutor(cfg, logger),
		Plans:      plan.NewTable(cfg.Plans),
		Model:      cfg.Anthropic.Model,
		Pricing:    cfg.Pricing,
		Filter:     cfg.Filter,
	})

	var sink agent.BufferSink
	result, err := orch.Process(ctx, agent.Request{
		Message:  question,
		CallerID: "cli",
		PlanName: "pro",
	}, &sink)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, result.Answer)
	fmt.Fprintf(stdout, "\n[%d model calls, %d/%d tokens, %d¢]\n",
		result.ModelCalls, result.InputTokens, result.OutputTokens, result.CostCents)
	return nil
}

// runServe handles the "torque serve" subcommand: full wiring of
// stores, the orchestrator, and the HTTP API, with graceful shutdown
// on SIGINT/SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Torque", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure now that the desired level is known. The initial
	// Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Anthropic.Model,
		"backend", cfg.Backend.URL,
	)

	if cfg.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	convos, err := convo.NewStore(filepath.Join(cfg.DataDir, "conversations.db"))
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}
	defer convos.Close()

	usageStore, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return fmt.Errorf("open usage store: %w", err)
	}
	defer usageStore.Close()

	balanceDB, err := sql.Open("sqlite3", filepath.Join(cfg.DataDir, "balances.db")+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open balance database: %w", err)
	}
	defer balanceDB.Close()
	balance, err := usage.NewBalanceStore(balanceDB)
	if err != nil {
		return fmt.Errorf("open balance store: %w", err)
	}

	client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, logger)
	executor := newExecutor(cfg, logger)
	bus := events.New()

	var enforcer *evidence.Enforcer
	if cfg.EvidenceEnabled() {
		classifier, err := evidence.NewClassifier(cfg.Evidence.Patterns)
		if err != nil {
			return fmt.Errorf("evidence patterns: %w", err)
		}
		enforcer = evidence.NewEnforcer(logger, classifier, client, executor, bus)
	}

	orch := agent.New(logger, agent.Options{
		Client:        client,
		Classifier:    domains.NewClassifier(cfg.Domains),
		Executor:      executor,
		Enforcer:      enforcer,
		Plans:         plan.NewTable(cfg.Plans),
		Conversations: convos,
		UsageStore:    usageStore,
		Balance:       balance,
		Bus:           bus,
		Model:         cfg.Anthropic.Model,
		Pricing:       cfg.Pricing,
		Filter:        cfg.Filter,
	})

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, orch, logger)
	server.SetUsageStore(usageStore)
	server.SetBalanceStore(balance)
	server.SetEventBus(bus)

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(shutdownCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
	}

	logger.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newExecutor builds the tool executor over the configured data backend.
func newExecutor(cfg *config.Config, logger *slog.Logger) *tools.Executor {
	timeout := time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backend := tools.NewHTTPBackend(cfg.Backend.URL, timeout)
	return tools.NewExecutor(logger, tools.Catalog(), backend)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
