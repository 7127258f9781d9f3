package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mkaravel/synergo/internal/brain"
	"github.com/mkaravel/synergo/internal/bus"
	"github.com/mkaravel/synergo/internal/chat"
	"github.com/mkaravel/synergo/internal/components"
	"github.com/mkaravel/synergo/internal/config"
	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/ledger"
	"github.com/mkaravel/synergo/internal/llm"
	"github.com/mkaravel/synergo/internal/scheduler"
	"github.com/mkaravel/synergo/internal/web"
	"github.com/mkaravel/synergo/internal/workflow"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("synergo %s\n", version)
	case "run":
		err = runWorkflow(os.Args[2:])
	case "serve":
		err = runServe()
	case "brain":
		err = runBrain(os.Args[2:])
	case "components":
		err = runComponents(os.Args[2:])
	case "chat":
		err = runChat()
	case "backup":
		err = runBackup(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: synergo <command>

Commands:
  run [-doc path] [task...]  Run the three-agent workflow once
  serve                      Start the gateway: scheduler, event bus, web API
  brain [message...]         Requirements brain, interactive unless given a message
  components                 Requirements-to-user-stories agent (-demo, -clear)
  chat                       Conversational pipeline with projects
  backup -f <file>           Archive the data directory (tar+zstd)
  restore -f <file>          Restore the data directory from an archive
  version                    Print version
`)
}

// interruptContext cancels on Ctrl-C so interactive surfaces and the run
// driver can say goodbye instead of dying mid-read.
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runWorkflow executes one run and prints the final document. Partial and
// failed runs still exit zero; the status line tells the story.
func runWorkflow(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	docPath := cfg.Workflow.DocumentPath
	task := cfg.Workflow.DefaultTask
	for i := 0; i < len(args); i++ {
		if args[i] == "-doc" {
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -doc")
			}
			i++
			docPath = args[i]
			continue
		}
		task = args[i]
		for _, word := range args[i+1:] {
			task += " " + word
		}
		break
	}

	completer, err := llm.NewClient(cfg.Anthropic)
	if err != nil {
		return err
	}
	db, err := ledger.Open(cfg.Data.StorePath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	runner := &workflow.Runner{
		Config:    cfg.Workflow,
		Store:     coord.NewStore(docPath),
		Completer: completer,
		Ledger:    db,
	}

	ctx, stop := interruptContext()
	defer stop()
	outcome, err := runner.Run(ctx, task)
	if ctx.Err() != nil {
		fmt.Println("\nWorkflow interrupted. Goodbye!")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Run %s finished: %s\n", outcome.RunID, outcome.Status)
	for _, name := range outcome.Failed {
		fmt.Printf("  failed agent: %s\n", name)
	}
	if totals, err := db.ScopeTotals(outcome.RunID); err == nil {
		fmt.Printf("  tokens: %d in + %d out, cost $%.6f\n",
			totals.InputTokens, totals.OutputTokens, totals.Cost)
	}

	data, err := json.MarshalIndent(outcome.Document, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting synergo gateway", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := ledger.Open(cfg.Data.StorePath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()
	slog.Info("ledger opened", "path", cfg.Data.StorePath)

	var b *bus.Bus
	var events *bus.Client
	if cfg.NATS.Enabled {
		b, err = bus.New(cfg.NATS)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer b.Close()
		slog.Info("nats started", "port", b.Port())

		events, err = bus.NewClient(b)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer events.Close()
	}

	completer, err := llm.NewClient(cfg.Anthropic)
	if err != nil {
		return err
	}
	runner := &workflow.Runner{
		Config:    cfg.Workflow,
		Store:     coord.NewStore(cfg.Workflow.DocumentPath),
		Completer: completer,
		Ledger:    db,
		Events:    events,
	}

	sched := scheduler.New(db, runner, events, cfg.Scheduler)
	go sched.Start(ctx)

	if cfg.Web.Enabled {
		srv := web.NewServer(db, runner.Store, b, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()
	return nil
}

func runBrain(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	completer, err := llm.NewClient(cfg.Anthropic)
	if err != nil {
		return err
	}

	mem, err := brain.OpenMemory(filepath.Join(cfg.Data.Dir, "brain"))
	if err != nil {
		return fmt.Errorf("open brain memory: %w", err)
	}
	console := brain.NewConsole(os.Stdin, os.Stdout)
	b := brain.New(mem, brain.NewReasoner(completer, nil), console)

	ctx, stop := interruptContext()
	defer stop()

	// With arguments, treat them as a single message and exit.
	if len(args) > 0 {
		return b.Process(ctx, strings.Join(args, " "))
	}
	return console.Loop(ctx, b)
}

func runComponents(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	completer, err := llm.NewClient(cfg.Anthropic)
	if err != nil {
		return err
	}

	sys, err := components.NewSystem(filepath.Join(cfg.Data.Dir, "components"), completer, os.Stdout, nil)
	if err != nil {
		return err
	}

	ctx, stop := interruptContext()
	defer stop()

	for _, arg := range args {
		switch arg {
		case "-clear":
			sys.ClearAll()
			return nil
		case "-demo":
			return sys.Demo(ctx)
		}
	}
	return sys.Loop(ctx, os.Stdin)
}

func runChat() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	completer, err := llm.NewClient(cfg.Anthropic)
	if err != nil {
		return err
	}
	db, err := ledger.Open(cfg.Data.StorePath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	projects, err := chat.NewProjects(cfg.Chat.ProjectsDir)
	if err != nil {
		return err
	}
	ctx, stop := interruptContext()
	defer stop()

	pipeline := &chat.Pipeline{Projects: projects, Completer: completer, Ledger: db}
	console := chat.NewConsole(pipeline, cfg.Anthropic.Model, os.Stdin, os.Stdout)
	return console.Loop(ctx)
}
