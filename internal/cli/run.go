package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dshills/cphelper/internal/cache"
	"github.com/dshills/cphelper/internal/config"
	"github.com/dshills/cphelper/internal/diff"
	"github.com/dshills/cphelper/internal/logging"
	"github.com/dshills/cphelper/internal/output"
	"github.com/dshills/cphelper/internal/pipeline"
	"github.com/dshills/cphelper/internal/runner"
	"github.com/dshills/cphelper/internal/watch"
	"github.com/spf13/cobra"
)

// Root command flags
var (
	flagRun            bool
	flagDiff           bool
	flagIgnoreCache    bool
	flagWatch          bool
	flagFailOnMismatch bool
	flagDiffFormat     string
	flagNoColor        bool
	flagVerbose        bool
	flagCacheFile      string
)

func addRootFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagRun, "run", "r", false, "Run the program and show its output (default)")
	cmd.Flags().BoolVarP(&flagDiff, "diff", "d", false, "Compare the output with the expected output")
	cmd.Flags().BoolVarP(&flagIgnoreCache, "ignore-cache", "i", false, "Ask for input (and expected output) again")
	cmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "Run again every time the file is saved")
	cmd.Flags().BoolVar(&flagFailOnMismatch, "fail-on-mismatch", false, "Exit with status 1 when the output does not match")
	cmd.Flags().StringVar(&flagDiffFormat, "diff-format", "", "Mismatch rendering (context, unified)")
	cmd.MarkFlagsMutuallyExclusive("run", "diff")

	cmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log diagnostics to stderr")
	cmd.PersistentFlags().StringVar(&flagCacheFile, "cache-file", "", "Cache file location (default: user cache dir)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagDiffFormat != "" {
		m["diffFormat"] = flagDiffFormat
	}
	if flagNoColor {
		m["noColor"] = "true"
	}
	if flagVerbose {
		m["logLevel"] = "debug"
	}
	if flagCacheFile != "" {
		m["cacheFile"] = flagCacheFile
	}
	return m
}

// setup resolves settings and configures logging. The returned reporter
// writes errors to stderr.
func setup() (config.Settings, *output.Reporter, error) {
	settings, err := config.LoadSettings(buildOverrides())
	if err != nil {
		return settings, output.New(stderr, output.Options{NoColor: flagNoColor}), err
	}
	logging.Init(logging.Config{
		Level:   logging.ParseLevel(settings.LogLevel),
		Output:  stderr,
		NoColor: settings.NoColor,
	})
	return settings, output.New(stderr, output.Options{NoColor: settings.NoColor}), nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	settings, errOut, err := setup()
	if err != nil {
		exitCode = fail(errOut, err)
		return nil
	}

	format, err := diff.ParseFormat(settings.DiffFormat)
	if err != nil {
		errOut.Error("Error: %v", err)
		exitCode = ExitUsageError
		return nil
	}

	file, err := sourceFile(args[0])
	if err != nil {
		errOut.Error("Error: %v", err)
		exitCode = ExitUsageError
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		exitCode = fail(errOut, err)
		return nil
	}
	lang, err := cfg.ForFile(file)
	if err != nil {
		exitCode = fail(errOut, err)
		return nil
	}
	logging.Debug().Str("config", cfg.Path).Str("language", lang.Name).Str("cache", settings.CacheFile).Msg("resolved")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(stdout, output.Options{NoColor: settings.NoColor})
	p := pipeline.New(runner.New(stdin, out), out, settings.CacheFile, diff.Options{Format: format})
	opts := pipeline.Options{Diff: flagDiff, IgnoreCache: flagIgnoreCache}

	if flagWatch {
		exitCode = watchFile(ctx, p, lang, file, opts, errOut)
	} else {
		outcome, err := p.Execute(ctx, lang, file, opts)
		exitCode = finish(errOut, outcome, err)
	}
	if err := out.Err(); err != nil && exitCode == ExitSuccess {
		exitCode = fail(errOut, fmt.Errorf("writing output: %w", err))
	}
	return nil
}

// sourceFile returns the absolute path of an existing regular file.
func sourceFile(arg string) (string, error) {
	file, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", arg, err)
	}
	info, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file %s does not exist", arg)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", arg)
	}
	return file, nil
}

// finish turns an execution result into the process exit code.
func finish(errOut *output.Reporter, outcome pipeline.Outcome, err error) int {
	if err != nil {
		return fail(errOut, err)
	}
	if flagFailOnMismatch && outcome.Diffed && !outcome.Matched && outcome.ExitCode == 0 {
		return ExitMismatch
	}
	return outcome.ExitCode
}

// fail reports err and returns the exit code for its class.
func fail(errOut *output.Reporter, err error) int {
	var configErr *config.Error
	switch {
	case errors.Is(err, context.Canceled):
		errOut.Error("\nInterrupted.")
		return ExitInterrupted
	case errors.Is(err, config.ErrNotFound):
		errOut.Error("Error: %v", err)
		errOut.Notice("Run `cpr config init` to create a starter config.")
		return ExitConfigError
	case errors.As(err, &configErr):
		errOut.Error("Error in config file: %v", err)
		return ExitConfigError
	case errors.Is(err, cache.ErrCorrupt):
		errOut.Error("Error: %v", err)
		errOut.Notice("Run `cpr cache clear` to start over.")
		return ExitRuntimeError
	default:
		errOut.Error("Error: %v", err)
		return ExitRuntimeError
	}
}

// watchFile runs the pipeline now and after every save until interrupted.
// Only the first run honors IgnoreCache.
func watchFile(ctx context.Context, p *pipeline.Pipeline, lang config.Language, file string, opts pipeline.Options, errOut *output.Reporter) int {
	w, err := watch.New(file, watch.DefaultDebounce)
	if err != nil {
		return fail(errOut, err)
	}
	defer w.Close()

	code := ExitSuccess
	runOnce := func(ctx context.Context) error {
		outcome, err := p.Execute(ctx, lang, file, opts)
		opts.IgnoreCache = false
		if err != nil && endsWatch(err) {
			return err
		}
		code = finish(errOut, outcome, err)
		p.Out.Notice("\nWatching %s for changes (Ctrl + C to stop)...", filepath.Base(file))
		return nil
	}

	err = runOnce(ctx)
	if err == nil {
		err = w.Run(ctx, runOnce)
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return code
	}
	return fail(errOut, err)
}

// endsWatch reports errors that a later save cannot fix.
func endsWatch(err error) bool {
	var configErr *config.Error
	return errors.Is(err, context.Canceled) || errors.Is(err, cache.ErrCorrupt) || errors.As(err, &configErr)
}
