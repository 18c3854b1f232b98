package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reachgraph/internal/core/app"
	"reachgraph/internal/core/config"
	"reachgraph/internal/shared/observability"
	"reachgraph/internal/shared/version"
	"reachgraph/internal/ui/cli"
	"reachgraph/internal/ui/report"
)

var (
	configPath  = flag.String("config", config.DefaultFile, "Path to config file")
	pkgRoot     = flag.String("package", "", "Package root used to derive module names")
	maxIter     = flag.Int("max-iter", -1, "Maximum fixed-point iterations (-1 = until convergence)")
	operation   = flag.String("operation", "", "Operation to run: call-graph or key-error")
	outputJSON  = flag.String("output", "", "Write the JSON result to this file")
	outputDOT   = flag.String("dot", "", "Write the call graph as DOT to this file")
	useStore    = flag.Bool("store", false, "Persist the run in the SQLite store")
	history     = flag.Bool("history", false, "Print the stored run history after the run")
	watch       = flag.Bool("watch", false, "Keep running and re-analyze on changes")
	metricsAddr = flag.String("metrics-addr", "", "Serve /metrics and /health on this address in watch mode")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: reachgraph [flags] <entry.py|dir>...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if *showVersion {
		fmt.Printf("reachgraph v%s\n", version.Version)
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, cfgFile, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to resolve working directory", "error", err)
		return 1
	}
	if err := applyFlags(cfg, cwd, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		return 1
	}

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve paths", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					slog.Warn("failed to flush traces", "error", err)
				}
			}()
		}
	}

	a, err := app.New(cfg, paths)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer a.Close()

	if _, err := a.RunOnce(ctx); err != nil {
		slog.Error("analysis failed", "error", err)
		if !*watch {
			return 1
		}
	}

	if *history {
		if err := printHistory(a); err != nil {
			slog.Error("failed to load run history", "error", err)
			return 1
		}
	}

	if !*watch {
		return 0
	}
	return watchLoop(ctx, a, cfg, cfgFile, cwd)
}

// loadConfig reads the config file. A missing default file is not an
// error; defaults are used instead.
func loadConfig() (*config.Config, string, error) {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	if _, err := os.Stat(*configPath); err != nil && !explicit {
		cfg := config.Default()
		config.ApplyEnvOverrides(cfg)
		return cfg, "", nil
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnvOverrides(cfg)
	abs, err := filepath.Abs(*configPath)
	if err != nil {
		abs = *configPath
	}
	return cfg, abs, nil
}

// applyFlags overrides the configuration with the flags that were set.
// Positional arguments replace the configured entry points.
func applyFlags(cfg *config.Config, cwd string, args []string) error {
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "package":
			cfg.Analysis.PackageRoot = absFrom(cwd, *pkgRoot)
		case "max-iter":
			v := *maxIter
			cfg.Analysis.MaxIter = &v
		case "operation":
			cfg.Analysis.Operation = strings.TrimSpace(*operation)
		case "output":
			cfg.Output.JSON = absFrom(cwd, *outputJSON)
		case "dot":
			cfg.Output.DOT = absFrom(cwd, *outputDOT)
		case "store":
			cfg.DB.Enabled = *useStore
		case "history":
			if *history && !cfg.DB.Enabled && !*useStore {
				flagErr = fmt.Errorf("-history requires the run store (-store or [db] enabled = true)")
			}
		}
	})
	if flagErr != nil {
		return flagErr
	}

	if len(args) > 0 {
		entries := make([]string, 0, len(args))
		for _, arg := range args {
			entries = append(entries, absFrom(cwd, arg))
		}
		cfg.Analysis.EntryPoints = entries
	}
	if len(cfg.Analysis.EntryPoints) == 0 {
		return fmt.Errorf("no entry points: pass files or directories, or set analysis.entry_points")
	}
	return nil
}

func absFrom(cwd, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cwd, p)
}

func printHistory(a *app.App) error {
	runs, err := a.RunHistory(time.Time{})
	if err != nil {
		return err
	}
	out, err := report.RenderRunHistoryTSV(runs)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func watchLoop(ctx context.Context, a *app.App, cfg *config.Config, cfgFile, cwd string) int {
	addr := *metricsAddr
	if addr == "" && cfg.Observability.Enabled && cfg.Observability.EnableMetrics {
		addr = fmt.Sprintf(":%d", cfg.Observability.Port)
	}
	if addr != "" {
		srv := cli.NewObservabilityServer(addr, app.NewHealthService(a))
		if err := srv.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	if err := a.StartWatcher(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}

	if cfgFile != "" {
		cw := config.NewWatcher(cfgFile, func(next *config.Config) {
			if err := applyFlags(next, cwd, flag.Args()); err != nil {
				slog.Warn("ignoring reloaded configuration", "error", err)
				return
			}
			if errs := config.Validate(next); len(errs) > 0 {
				slog.Warn("ignoring invalid reloaded configuration", "errors", len(errs), "first", errs[0])
				return
			}
			paths, err := config.ResolvePaths(next, cwd)
			if err != nil {
				slog.Warn("ignoring reloaded configuration", "error", err)
				return
			}
			a.Reload(next, paths)
			slog.Info("configuration reloaded", "path", cfgFile)
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config watcher disabled", "error", err)
		} else {
			defer cw.Stop()
		}
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return 0
}
