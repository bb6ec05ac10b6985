package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/codefionn/promptloop/internal/config"
	"github.com/codefionn/promptloop/internal/history"
	"github.com/codefionn/promptloop/internal/logger"
	"github.com/codefionn/promptloop/internal/loop"
	"github.com/codefionn/promptloop/internal/prd"
	"github.com/codefionn/promptloop/internal/progress"
	"github.com/codefionn/promptloop/internal/vcs"
	"github.com/codefionn/promptloop/internal/web"
	"github.com/codefionn/promptloop/internal/worker"
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type options struct {
	worker        string
	maxIterations int
	project       string
	promptPath    string
	prdPath       string
	branch        string
	serve         bool
	dashboard     bool
	archive       bool
	logLevel      string
	historyPath   string
	configPath    string
}

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(args []string) (code int, err error) {
	opts, parseErr := parseArgs(args)
	if parseErr != nil {
		if errors.Is(parseErr, flag.ErrHelp) {
			return 0, nil
		}
		return 1, parseErr
	}

	cfgPath := opts.configPath
	if cfgPath == "" {
		cfgPath = config.GetConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return 1, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cfg, opts)

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return 1, fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	logger.Info("promptloop starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectRoot, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return 1, fmt.Errorf("failed to resolve project root: %w", err)
	}

	switch {
	case opts.archive:
		return runArchive(cfg, projectRoot)
	case opts.serve:
		return runServe(ctx, cfg, projectRoot)
	default:
		return runLoop(ctx, cfg, opts, projectRoot)
	}
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("promptloop", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := &options{}
	fs.StringVar(&opts.worker, "worker", "", fmt.Sprintf("Worker CLI to drive (available: %v)", worker.Kinds()))
	fs.IntVar(&opts.maxIterations, "max-iterations", 0, "Fresh iteration budget for the run (default 10)")
	fs.StringVar(&opts.project, "project", "", "Project directory the worker runs in (default current directory)")
	fs.StringVar(&opts.promptPath, "prompt", "", "Prompt file fed to the worker each iteration")
	fs.StringVar(&opts.prdPath, "prd", "", "PRD JSON file, relative to the project directory")
	fs.StringVar(&opts.branch, "branch", "", "Git branch to check out before the run (default: the PRD's branchName)")
	fs.BoolVar(&opts.serve, "serve", false, "Start the PRD authoring dashboard instead of running the loop")
	fs.BoolVar(&opts.dashboard, "dashboard", false, "Serve the dashboard alongside the loop to observe the run live")
	fs.BoolVar(&opts.archive, "archive", false, "Move run artifacts into the project archive and exit")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	fs.StringVar(&opts.historyPath, "history", "", "SQLite run ledger path (empty string disables)")
	fs.StringVar(&opts.configPath, "config", "", "Config file path")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(fs.Output(), "Drives an external coding agent CLI against a PRD until it reports completion.")
		fmt.Fprintln(fs.Output(), "\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// applyFlags layers explicit command line flags over the loaded config.
func applyFlags(cfg *config.Config, opts *options) {
	if opts.worker != "" {
		cfg.Worker = opts.worker
	}
	if opts.maxIterations > 0 {
		cfg.MaxIterations = opts.maxIterations
	}
	if opts.project != "" {
		cfg.ProjectRoot = opts.project
	}
	if opts.promptPath != "" {
		cfg.PromptPath = opts.promptPath
	}
	if opts.prdPath != "" {
		cfg.PRDPath = opts.prdPath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.historyPath != "" {
		cfg.HistoryPath = opts.historyPath
	}
}

func runLoop(ctx context.Context, cfg *config.Config, opts *options, projectRoot string) (int, error) {
	kind, err := worker.ParseKind(cfg.Worker)
	if err != nil {
		return 1, err
	}
	def, _ := worker.Lookup(kind)

	if err := worker.CheckDependencies(def); err != nil {
		return 1, err
	}

	prdPath := resolveInProject(projectRoot, cfg.PRDPath)
	doc, docErr := prd.Load(prdPath)
	if docErr != nil && !errors.Is(docErr, os.ErrNotExist) {
		return 1, docErr
	}

	if err := ensureBranch(ctx, vcs.NewGit(projectRoot), opts.branch, doc); err != nil {
		return 1, err
	}

	prompt, err := loadPrompt(cfg, projectRoot, doc)
	if err != nil {
		return 1, err
	}

	loopCfg := loop.DefaultConfig()
	loopCfg.MaxIterations = cfg.MaxIterations
	if cfg.RetryDelaySecs > 0 {
		loopCfg.BaseRetryDelay = time.Duration(cfg.RetryDelaySecs) * time.Second
	}
	if cfg.IterationDelaySecs > 0 {
		loopCfg.IterationDelay = time.Duration(cfg.IterationDelaySecs) * time.Second
	}

	var driverOpts []loop.Option

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			logger.Warn("Run ledger disabled: %v", err)
		} else {
			defer store.Close()
			if err := store.StartRun(string(kind), loopCfg.MaxIterations); err != nil {
				logger.Warn("Failed to record run start: %v", err)
			} else {
				driverOpts = append(driverOpts, loop.WithRecorder(store))
			}
		}
	}

	// With -dashboard the run is observable live: driver progress fans out
	// to the terminal and the web hub, and /api/status reflects the loop
	// counters instead of just the PRD file.
	progressCb := progress.Callback(terminalProgress)
	var srv *web.Server
	var activeDriver atomic.Pointer[loop.Driver]
	if opts.dashboard {
		srv, err = web.NewServer(cfg.WebPort, prdPath, buildConverter(cfg, projectRoot), store, func() *web.StatusInfo {
			return runStatus(activeDriver.Load(), string(kind), loopCfg.MaxIterations, prdPath)
		})
		if err != nil {
			return 1, err
		}
		if err := srv.Start(); err != nil {
			return 1, err
		}
		defer func() {
			if stopErr := srv.Stop(); stopErr != nil {
				logger.Warn("Failed to stop dashboard: %v", stopErr)
			}
		}()
		fmt.Println(dimStyle.Render("dashboard: " + srv.GetURL()))

		progressCb = progress.Multi(terminalProgress, func(u progress.Update) error {
			// Ephemeral lines (retry waits) stay on the terminal; the
			// dashboard keeps a persistent progress log.
			if !u.Ephemeral {
				srv.PublishProgress(strings.TrimSuffix(u.Message, "\n"))
			}
			return nil
		})
	}
	driverOpts = append(driverOpts, loop.WithProgress(progressCb))

	if doc != nil {
		if preview, previewErr := prd.RenderTerminal(doc.ToMarkdown()); previewErr == nil {
			fmt.Print(preview)
		} else {
			logger.Debug("PRD preview unavailable: %v", previewErr)
		}
	}
	fmt.Println(bannerStyle.Render(fmt.Sprintf("promptloop: %s, %d iterations max", def.DisplayName, loopCfg.MaxIterations)))
	fmt.Println(dimStyle.Render(fmt.Sprintf("project: %s", projectRoot)))

	invoker := worker.NewExecInvoker(def, os.Stdout)
	driver := loop.New(loopCfg, invoker, driverOpts...)
	activeDriver.Store(driver)

	result, err := driver.Run(ctx, projectRoot, prompt)
	if err != nil {
		return 1, fmt.Errorf("run interrupted: %w", err)
	}

	if store != nil {
		if err := store.FinishRun(result); err != nil {
			logger.Warn("Failed to record run end: %v", err)
		}
	}
	if srv != nil {
		srv.PublishRunFinished(result.Status.String(), result.Iterations)
	}

	printOutcome(result)
	return result.Status.ExitCode(), nil
}

// runStatus assembles the live status the dashboard polls during a run.
func runStatus(driver *loop.Driver, workerName string, maxIterations int, prdPath string) *web.StatusInfo {
	info := &web.StatusInfo{
		Worker:       workerName,
		MaxIteration: maxIterations,
		Remaining:    []string{},
	}
	if driver != nil {
		info.Running = true
		info.Iteration = driver.State().Iteration()
	}
	if status, err := prd.ReadStatus(prdPath); err == nil {
		info.Total = status.Total
		info.Passed = status.Passed
		if status.Remaining != nil {
			info.Remaining = status.Remaining
		}
	}
	return info
}

func runServe(ctx context.Context, cfg *config.Config, projectRoot string) (int, error) {
	prdPath := resolveInProject(projectRoot, cfg.PRDPath)

	var store *history.Store
	if cfg.HistoryPath != "" {
		var err error
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			logger.Warn("Run ledger unavailable: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	srv, err := web.NewServer(cfg.WebPort, prdPath, buildConverter(cfg, projectRoot), store, nil)
	if err != nil {
		return 1, err
	}
	if err := srv.Start(); err != nil {
		return 1, err
	}

	fmt.Println(bannerStyle.Render("promptloop dashboard"))
	fmt.Printf("Open %s\n", srv.GetURL())
	if err := srv.OpenBrowser(); err != nil {
		logger.Debug("Could not open browser: %v", err)
	}

	<-ctx.Done()
	fmt.Println()
	return 0, srv.Stop()
}

func runArchive(cfg *config.Config, projectRoot string) (int, error) {
	prdPath := cfg.PRDPath
	markdownPath := strings.TrimSuffix(prdPath, filepath.Ext(prdPath)) + ".md"

	dest, err := vcs.ArchiveRun(projectRoot, prdPath, markdownPath, "progress.txt")
	if err != nil {
		return 1, err
	}
	fmt.Printf("Archived run artifacts to %s\n", dest)
	return 0, nil
}

// buildConverter picks the markdown conversion backend for the dashboard:
// the Anthropic API when a key is configured, otherwise the installed worker
// CLI. With neither available the template fallback still applies.
func buildConverter(cfg *config.Config, projectRoot string) prd.Converter {
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		return prd.NewAPIConverter(key, "")
	}
	if kind, err := worker.ParseKind(cfg.Worker); err == nil {
		if def, ok := worker.Lookup(kind); ok {
			if err := worker.CheckDependencies(def); err == nil {
				return prd.NewWorkerConverter(worker.NewExecInvoker(def, nil), projectRoot)
			}
		}
	}
	logger.Warn("No conversion backend available, markdown conversion will use the template fallback")
	return nil
}

// ensureBranch checks out the work branch before the run starts. An explicit
// -branch flag wins over the PRD's branchName; with neither, the current
// branch is kept.
func ensureBranch(ctx context.Context, v vcs.VCS, flagBranch string, doc *prd.Document) error {
	branch := flagBranch
	if branch == "" && doc != nil {
		branch = doc.BranchName
	}
	if branch == "" {
		return nil
	}

	if err := v.EnsureBranch(ctx, branch); err != nil {
		return fmt.Errorf("failed to check out branch %q: %w", branch, err)
	}
	logger.Info("On branch %s", branch)
	return nil
}

// loadPrompt reads the iteration prompt. When no prompt file exists but a
// PRD does, a prompt is generated from the PRD instead.
func loadPrompt(cfg *config.Config, projectRoot string, doc *prd.Document) (string, error) {
	promptPath := resolveInProject(projectRoot, cfg.PromptPath)
	data, err := os.ReadFile(promptPath)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}

	if doc != nil {
		logger.Info("No prompt file at %s, generating prompt from PRD", promptPath)
		return promptFromPRD(doc), nil
	}
	return "", fmt.Errorf("no prompt file at %s and no PRD to generate one from", promptPath)
}

// promptFromPRD builds the iteration prompt the worker sees when the
// operator authored only a PRD.
func promptFromPRD(doc *prd.Document) string {
	var b strings.Builder
	b.WriteString("You are implementing the following product requirements document.\n")
	b.WriteString("Pick the highest-priority user story whose passes flag is false, implement it, ")
	b.WriteString("run the tests, and set its passes flag to true in prd.json once its acceptance ")
	b.WriteString("criteria are met. Work on one story per session.\n\n")
	fmt.Fprintf(&b, "When every user story passes, output exactly: %s\n\n", loop.CompletionMarker)
	b.WriteString(doc.ToMarkdown())
	return b.String()
}

func resolveInProject(projectRoot, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}

func terminalProgress(u progress.Update) error {
	_, err := fmt.Print(dimStyle.Render(strings.TrimSuffix(u.Message, "\n")) + "\n")
	return err
}

func printOutcome(result *loop.Result) {
	line := fmt.Sprintf("%s after %d iteration(s), %d invocation(s)",
		result.Status, result.Iterations, result.Invocations)
	if result.Status == loop.StatusSucceeded {
		fmt.Println(successStyle.Render(line))
	} else {
		fmt.Println(failureStyle.Render(line))
	}
}
