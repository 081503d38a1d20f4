package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dshills/cphelper/internal/cache"
	"github.com/dshills/cphelper/internal/command"
	"github.com/dshills/cphelper/internal/config"
	"github.com/dshills/cphelper/internal/diff"
	"github.com/dshills/cphelper/internal/logging"
	"github.com/dshills/cphelper/internal/output"
	"github.com/dshills/cphelper/internal/runner"
)

// Options selects the mode of one execution.
type Options struct {
	// Diff compares the last step's stdout against an expected output.
	Diff bool
	// IgnoreCache collects input and expected output afresh even when the
	// cache holds them. The fresh values replace the cached ones.
	IgnoreCache bool
}

// Outcome summarizes an execution.
type Outcome struct {
	// ExitCode is the exit status of the last step that ran.
	ExitCode int
	StepsRun int
	// Diffed reports whether a comparison was made; Matched is its verdict.
	Diffed  bool
	Matched bool
}

// Pipeline ties the runner, the cache and the reporter together.
type Pipeline struct {
	Runner    *runner.Runner
	Out       *output.Reporter
	CachePath string
	Diff      diff.Options
}

// New creates a Pipeline. Interactive input is read through r.
func New(r *runner.Runner, out *output.Reporter, cachePath string, diffOpts diff.Options) *Pipeline {
	return &Pipeline{Runner: r, Out: out, CachePath: cachePath, Diff: diffOpts}
}

// Execute runs every command of lang against file. A step exiting non-zero
// is reported through Outcome, not as an error. Errors are launch failures,
// cache problems, tokenizing failures and cancellation.
func (p *Pipeline) Execute(ctx context.Context, lang config.Language, file string, opts Options) (out Outcome, err error) {
	if len(lang.Commands) == 0 {
		return Outcome{}, &config.Error{Msg: fmt.Sprintf("language %q has no commands", lang.Name)}
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolving %s: %w", file, err)
	}
	file = abs

	store, err := cache.Open(p.CachePath)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("saving cache: %w", cerr))
		}
	}()

	entry, hit := store.Lookup(file)
	if opts.IgnoreCache {
		hit = false
	}
	logging.Debug().Str("file", file).Str("language", lang.Name).Bool("cacheHit", hit).Msg("executing")

	last := len(lang.Commands) - 1
	for i, tmpl := range lang.Commands {
		args, err := command.Split(tmpl.Resolve(file))
		if err != nil {
			return out, fmt.Errorf("step %d of %s: %w", i+1, lang.Name, err)
		}
		req := runner.Request{Args: args}
		if i == last {
			req.Input = runner.InputPrompt
			if hit {
				cached := entry.Input
				req.Cached = &cached
			}
		}

		res, err := p.Runner.Run(ctx, req)
		if err != nil {
			if res.FreshInput {
				// Keep what the user already typed.
				if serr := store.Save(file, res.Input, nil); serr != nil {
					err = errors.Join(err, serr)
				}
			}
			return out, err
		}
		out.StepsRun++
		out.ExitCode = res.ExitCode

		if i < last {
			if res.ExitCode != 0 {
				logging.Debug().Int("step", i+1).Int("exitCode", res.ExitCode).Msg("step failed, stopping")
				return out, nil
			}
			continue
		}

		var expected *string
		if opts.Diff {
			exp, err := p.expected(ctx, entry, hit)
			if err != nil {
				if res.FreshInput {
					// Keep what the user already typed.
					if serr := store.Save(file, res.Input, nil); serr != nil {
						err = errors.Join(err, serr)
					}
				}
				return out, err
			}
			expected = &exp
			result, err := diff.Compare(res.Stdout, exp, p.Diff)
			if err != nil {
				return out, err
			}
			out.Diffed = true
			out.Matched = result.Matched
			if result.Matched {
				p.Out.Match()
			} else {
				p.Out.Mismatch(result.Report, result.Added, result.Removed)
			}
		}

		if res.FreshInput || out.Diffed {
			if err := store.Save(file, res.Input, expected); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// expected returns the cached expected output when the input was replayed
// and the entry carries one; otherwise it asks the user.
func (p *Pipeline) expected(ctx context.Context, entry cache.Entry, hit bool) (string, error) {
	if hit && entry.HasExpected() {
		p.Out.CachedExpected(*entry.Expected)
		return *entry.Expected, nil
	}
	p.Out.PromptExpected()
	text, err := runner.ReadAll(ctx, p.Runner.In)
	if err != nil {
		return "", fmt.Errorf("reading expected output: %w", err)
	}
	return text, nil
}
