package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/vanderheijden86/riskboard/internal/datasource"
	"github.com/vanderheijden86/riskboard/internal/logging"
	"github.com/vanderheijden86/riskboard/pkg/config"
	"github.com/vanderheijden86/riskboard/pkg/dashboard"
	"github.com/vanderheijden86/riskboard/pkg/debug"
	"github.com/vanderheijden86/riskboard/pkg/export"
	"github.com/vanderheijden86/riskboard/pkg/loader"
	"github.com/vanderheijden86/riskboard/pkg/localstore"
	"github.com/vanderheijden86/riskboard/pkg/metrics"
	_ "github.com/vanderheijden86/riskboard/pkg/ttyguard"
	"github.com/vanderheijden86/riskboard/pkg/ui"
	"github.com/vanderheijden86/riskboard/pkg/version"
	"github.com/vanderheijden86/riskboard/pkg/watcher"
)

type options struct {
	configPath  string
	driver      string
	dsn         string
	gridSize    int
	logLevel    string
	logFormat   string
	metricsAddr string
	demo        int
	importPath  string
	robotJSON   bool
	report      bool
	exportDir   string
	noMouse     bool
	noWatch     bool
	versionFlag bool
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/riskboard/config.yaml)")
	fs.StringVar(&o.driver, "db-driver", "", "Record backend: sqlite, postgres or memory")
	fs.StringVar(&o.dsn, "dsn", "", "SQLite file or PostgreSQL URL")
	fs.IntVar(&o.gridSize, "grid-size", 0, "Grid dimension N (2-10)")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format: text or json")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.IntVar(&o.demo, "demo", 0, "Seed this many generated risks into the backend")
	fs.StringVar(&o.importPath, "import", "", "Seed risks from a JSON Lines file into the backend")
	fs.BoolVar(&o.robotJSON, "robot-json", false, "Print the dashboard as JSON and exit")
	fs.BoolVar(&o.report, "report", false, "Print a Markdown report and exit")
	fs.StringVar(&o.exportDir, "export", "", "Write heatmaps and report to this directory and exit")
	fs.BoolVar(&o.noMouse, "no-mouse", false, "Disable mouse support")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Do not reload on external database changes")
	fs.BoolVarP(&o.versionFlag, "version", "v", false, "Show version")
	return o, fs.Parse(args)
}

// loadConfig layers file, environment and flags, in that order.
func loadConfig(fs *flag.FlagSet, o options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
		config.ApplyEnv(&cfg)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	if fs.Changed("db-driver") {
		cfg.Datasource.Driver = o.driver
	}
	if fs.Changed("dsn") {
		cfg.Datasource.DSN = o.dsn
	}
	if fs.Changed("grid-size") {
		cfg.UI.GridSize = o.gridSize
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.noMouse {
		cfg.UI.Mouse = new(bool)
	}
	if o.noWatch {
		cfg.UI.Watch = new(bool)
	}
	return cfg, cfg.Validate()
}

func main() {
	fs := flag.NewFlagSet("rb", flag.ContinueOnError)
	o, err := parseFlags(fs, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}
	if o.versionFlag {
		fmt.Printf("rb %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(fs, o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	debug.Dump("config", cfg)

	interactive := !o.robotJSON && !o.report && o.exportDir == "" && term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(cfg, o, interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, o options, interactive bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, tuiHandler, closeLog, err := buildLogger(cfg, interactive)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	if cfg.Metrics.Addr != "" {
		metrics.SetEnabled(true)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server stopped", "addr", cfg.Metrics.Addr, "err", err)
			}
		}()
	}

	backend, err := datasource.Open(ctx, cfg.Datasource.Driver, cfg.Datasource.DSN, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	if o.demo > 0 {
		n, err := datasource.Seed(ctx, backend, demoRisks(o.demo, cfg.UI.GridSize))
		if err != nil {
			return fmt.Errorf("seeding demo risks: %w", err)
		}
		logger.Info("demo risks seeded", "inserted", n)
	}
	if o.importPath != "" {
		if err := importRisks(ctx, backend, o.importPath, logger); err != nil {
			return err
		}
	}

	store := localstore.NewFileStore(filepath.Join(config.StateDir(), "state"))
	session, err := dashboard.NewSession(backend, store, dashboard.Options{
		GridSize: cfg.UI.GridSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if !interactive {
		if err := session.Reload(ctx); err != nil {
			return err
		}
		return runBatch(ctx, session, o, os.Stdout)
	}

	var w *watcher.Watcher
	if cfg.WatchEnabled() && cfg.Datasource.Driver == datasource.DriverSQLite {
		w, err = watcher.New(cfg.Datasource.DSN,
			watcher.WithOnError(func(err error) { logger.Warn("database watcher", "err", err) }),
		)
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			logger.Warn("live reload disabled", "err", err)
			w = nil
		} else {
			logger.Debug("watching database", "path", w.Path(), "mode", w.Mode(), "fs", w.FilesystemType())
			defer w.Stop()
		}
	}

	m := ui.NewModel(session, ui.Options{
		Context:   ctx,
		Watcher:   w,
		ExportDir: filepath.Join(config.DataDir(), "exports"),
		Logger:    logger,
	})
	return runTUIProgram(m, tuiHandler, cfg.MouseEnabled())
}

// importRisks seeds the backend from a JSONL file. Risks whose id already
// exists are left untouched.
func importRisks(ctx context.Context, b datasource.Backend, path string, logger *slog.Logger) error {
	risks, err := loader.LoadRisksFromFile(path, loader.ParseOptions{
		WarningHandler: func(msg string) { logger.Warn("import", "file", path, "msg", msg) },
	})
	if err != nil {
		return err
	}
	n, err := datasource.Seed(ctx, b, risks)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}
	logger.Info("risks imported", "file", path, "read", len(risks), "inserted", n)
	return nil
}

// runBatch handles the non-interactive outputs. Without an explicit mode the
// Markdown report goes to stdout.
func runBatch(ctx context.Context, s *dashboard.Session, o options, w io.Writer) error {
	view := s.View()
	switch {
	case o.robotJSON:
		return writeRobotJSON(w, view)
	case o.exportDir != "":
		paths, err := export.WriteAll(ctx, o.exportDir, view, export.Options{})
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(w, p)
		}
		return nil
	default:
		return export.WriteMarkdown(w, view, export.MarkdownOptions{})
	}
}

// buildLogger returns the process logger. The TUI owns the terminal, so
// there records go to the log file and warnings also reach the status bar.
func buildLogger(cfg config.Config, interactive bool) (*slog.Logger, *ui.TUILogHandler, func(), error) {
	if !interactive {
		l, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		return l, nil, func() {}, err
	}

	path := cfg.Log.File
	if path == "" {
		path = filepath.Join(config.StateDir(), "rb.log")
	}
	fileHandler, closeFile, err := logging.OpenFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		closeFile()
		return nil, nil, nil, err
	}
	if debug.Enabled() {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			debug.SetOutput(f)
		}
	}
	tuiHandler := ui.NewTUILogHandler(max(level, slog.LevelWarn))
	return slog.New(logging.Fanout{fileHandler, tuiHandler}), tuiHandler, closeFile, nil
}

func runTUIProgram(m ui.Model, logHandler *ui.TUILogHandler, mouse bool) error {
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithoutSignalHandler()}
	if mouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)
	if logHandler != nil {
		logHandler.SetProgram(p)
	}

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set RB_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("RB_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}
				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
