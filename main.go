package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/olehluchkiv/mastersort/internal/cluster"
	"github.com/olehluchkiv/mastersort/internal/config"
	"github.com/olehluchkiv/mastersort/internal/graph"
	"github.com/olehluchkiv/mastersort/internal/logging"
	"github.com/olehluchkiv/mastersort/internal/partition"
	"github.com/olehluchkiv/mastersort/internal/report"
	"github.com/olehluchkiv/mastersort/internal/resolver"
	"github.com/olehluchkiv/mastersort/internal/server"
	"github.com/olehluchkiv/mastersort/internal/store"
)

func main() {
	// Use a custom FlagSet so we can parse all args regardless of position.
	// Go's default flag.Parse stops at the first non-flag argument, which
	// breaks "mastersort Mod.esp.yaml -limit 10". We reorder args so flags
	// come first, then positional args.
	flags, positional := reorderArgs(os.Args[1:])

	def := config.Default()
	fs := flag.NewFlagSet("mastersort", flag.ExitOnError)
	configFile := fs.String("config", "", "YAML config file")
	limit := fs.Int("limit", def.Limit, "maximum number of masters per output plugin")
	placement := fs.String("placement", def.Placement, "placement of self-originated records (primary, any)")
	keepIDs := fs.Bool("keep-ids", def.KeepLocalIDs, "keep local ids of records placed in the primary output")
	outDir := fs.String("out", def.OutDir, "output directory for partitioned plugins (empty to skip writing)")
	format := fs.String("format", def.Format, "output document format (yaml, json)")
	compression := fs.String("compress", def.Compression, "output compression (none, zstd, lz4)")
	jobs := fs.Int("jobs", def.Jobs, "plugins partitioned concurrently (0 = GOMAXPROCS)")
	reportFile := fs.String("report", def.Report, "write Mermaid report to file")
	serve := fs.Bool("serve", def.Serve, "serve the report over HTTP")
	port := fs.Int("port", def.Port, "HTTP server port")
	noBrowser := fs.Bool("no-browser", def.NoBrowser, "skip auto-opening browser")
	logFile := fs.String("log-file", def.Log.File, "log file path")
	logLevel := fs.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")

	if err := fs.Parse(flags); err != nil {
		os.Exit(1)
	}
	// Collect any remaining args from flag parsing + our positional args
	positional = append(positional, fs.Args()...)

	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mastersort [flags] <plugin-file-or-dir>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	input := positional[0]

	cfg := def
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags given on the command line win over the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "limit":
			cfg.Limit = *limit
		case "placement":
			cfg.Placement = *placement
		case "keep-ids":
			cfg.KeepLocalIDs = *keepIDs
		case "out":
			cfg.OutDir = *outDir
		case "format":
			cfg.Format = *format
		case "compress":
			cfg.Compression = *compression
		case "jobs":
			cfg.Jobs = *jobs
		case "report":
			cfg.Report = *reportFile
		case "serve":
			cfg.Serve = *serve
		case "port":
			cfg.Port = *port
		case "no-browser":
			cfg.NoBrowser = *noBrowser
		case "log-file":
			cfg.Log.File = *logFile
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid settings: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", cfg.Log.Level, err)
		os.Exit(1)
	}

	// Setup logging
	logger, logCleanup, err := logging.Setup(cfg.Log.File, level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logCleanup()

	// Setup signal handling with context cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, input, logger); err != nil {
		logger.Error("run failed", "error", err)
		printError(err)
		os.Exit(1)
	}
}

// run resolves the input, partitions every plugin and then writes outputs.
// Nothing is written unless every plugin partitioned successfully.
func run(ctx context.Context, cfg config.Config, input string, logger *slog.Logger) error {
	// Step 1: Resolve input to plugin documents
	fmt.Println("Resolving input...")
	paths, err := resolver.Resolve(ctx, input, logger)
	if err != nil {
		return fmt.Errorf("resolving input: %w", err)
	}

	// Step 2: Load
	providers := make([]graph.Provider, 0, len(paths))
	for _, path := range paths {
		p, err := store.Load(path)
		if err != nil {
			return err
		}
		providers = append(providers, p)
	}
	fmt.Printf("Loaded %d plugin(s)\n", len(providers))

	// Step 3: Partition
	opts, err := cfg.PartitionOptions()
	if err != nil {
		return err
	}
	opts.Logger = logger
	results, err := partition.PartitionAll(ctx, providers, partition.NewPlugin, opts)
	if err != nil {
		return err
	}

	// Step 4: Write units
	if cfg.OutDir != "" {
		if err := writeUnits(cfg, results, logger); err != nil {
			return err
		}
	}

	summaries := make([]report.Summary, len(results))
	for i, res := range results {
		summaries[i] = report.FromResult(res, cfg.Limit)
	}
	summary := report.Text(summaries)
	fmt.Print(summary)

	// Step 5: Report
	diagramOpts := report.DefaultDiagramOptions()
	if cfg.Report != "" {
		// File output: include %%{init:}%% for standalone .mmd rendering
		fileOpts := diagramOpts
		fileOpts.IncludeInit = true
		content := report.GenerateMermaid(summaries, fileOpts)
		if err := os.WriteFile(cfg.Report, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing report to %s: %w", cfg.Report, err)
		}
		fmt.Printf("Wrote report to %s\n", cfg.Report)
	}

	if cfg.Serve {
		slides := report.BuildSlides(summaries, diagramOpts)
		fmt.Printf("Starting server on http://localhost:%d\n", cfg.Port)
		if err := server.Serve(ctx, slides, summary, cfg.Port, !cfg.NoBrowser, logger); err != nil {
			return err
		}
	}
	return nil
}

func writeUnits(cfg config.Config, results []*partition.Result[*graph.Plugin], logger *slog.Logger) error {
	format, err := store.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	compression, err := store.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}
	if err := checkUnitNames(results); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, res := range results {
		for _, u := range res.Units {
			path := filepath.Join(cfg.OutDir, store.FileName(u.Name, format, compression))
			if err := store.Save(path, u.Target); err != nil {
				return err
			}
			logger.Debug("wrote unit", "path", path, "records", u.Target.Len())
		}
	}
	fmt.Printf("Wrote output to %s\n", cfg.OutDir)
	return nil
}

// checkUnitNames rejects runs where two units would be written to the same
// file, e.g. inputs Bins.esp and Bins_2.esp when Bins.esp splits in two.
// Names are compared case-insensitively, as plugin file names are.
func checkUnitNames(results []*partition.Result[*graph.Plugin]) error {
	owner := make(map[string]graph.SourceID)
	for _, res := range results {
		for _, u := range res.Units {
			name := strings.ToLower(string(u.Name))
			if prev, ok := owner[name]; ok {
				return fmt.Errorf("output %s of %s collides with an output of %s", u.Name, res.Source, prev)
			}
			owner[name] = res.Source
		}
	}
	return nil
}

// printError prints err for the user, with the offending masters when a
// record could not fit into any output plugin.
func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var tooMany *cluster.TooManyMastersError
	if errors.As(err, &tooMany) {
		names := make([]string, len(tooMany.Masters))
		for i, m := range tooMany.Masters {
			names[i] = string(m)
		}
		fmt.Fprintf(os.Stderr, "Masters of %s (%d, limit %d):\n  %s\n",
			tooMany.Source, len(names), tooMany.Limit, strings.Join(names, "\n  "))
	}
}

// reorderArgs separates flags and positional arguments so flags can appear
// in any position (before or after the positional path argument).
// Flags that take a value (e.g., -limit 10) consume the next arg.
func reorderArgs(args []string) (flags, positional []string) {
	// Set of flags that take a value argument
	valueFlagSet := map[string]bool{
		"-config": true, "-limit": true, "-placement": true,
		"-out": true, "-format": true, "-compress": true,
		"-jobs": true, "-report": true, "-port": true,
		"-log-file": true, "-log-level": true,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			// Check if this flag takes a value (and it's not using = syntax)
			name := "-" + strings.TrimLeft(arg, "-")
			if !strings.Contains(arg, "=") && valueFlagSet[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return flags, positional
}
