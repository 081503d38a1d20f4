package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/cphelper/internal/logging"
	"github.com/dshills/cphelper/internal/output"
)

// InputMode says where a step's stdin comes from.
type InputMode int

const (
	// InputNone gives the child an empty stdin.
	InputNone InputMode = iota
	// InputPrompt feeds cached input if the request carries one, and
	// otherwise reads it from the user until end-of-stream.
	InputPrompt
)

// Request describes one process invocation.
type Request struct {
	// Args is the command and its arguments, already tokenized.
	Args  []string
	Input InputMode
	// Cached is input replayed instead of prompting when Input is InputPrompt.
	Cached *string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// Result is what one process invocation produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Input is the text fed to the child's stdin.
	Input string
	// FreshInput is true when Input was typed by the user during this run.
	FreshInput bool
	Duration   time.Duration
}

// LaunchError reports a command that could not be started.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("cannot run %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Runner starts external commands and reports their output.
type Runner struct {
	// In is where interactive input is read from.
	In  io.Reader
	Out *output.Reporter
}

// New creates a Runner reading interactive input from in.
func New(in io.Reader, out *output.Reporter) *Runner {
	return &Runner{In: in, Out: out}
}

// waitDelay bounds how long Wait keeps draining pipes once the child has
// exited or been killed. Background grandchildren can hold them open forever.
const waitDelay = time.Second

// Run starts req, feeds it its input and waits for it to finish. Input is
// only asked for once the command is running, so a command that cannot be
// started never prompts. The child's stdout and stderr are drained before
// Run returns. A non-zero exit is not an error; it is reported through
// Result.ExitCode.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if len(req.Args) == 0 {
		return Result{}, &LaunchError{Command: "<empty>", Err: errors.New("no command given")}
	}
	display := strings.Join(req.Args, " ")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, req.Args[0], req.Args[1:]...)
	cmd.Dir = req.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	var stdin io.WriteCloser
	if req.Input == InputPrompt {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return Result{}, fmt.Errorf("creating stdin pipe: %w", err)
		}
		stdin = pipe
	}

	logging.Debug().Strs("args", req.Args).Bool("cachedInput", req.Cached != nil).Msg("starting command")
	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &LaunchError{Command: display, Err: err}
	}

	var res Result
	var fed chan error
	if stdin != nil {
		input, fresh, err := r.input(ctx, req.Cached)
		if err != nil {
			stdin.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return Result{}, err
		}
		res.Input, res.FreshInput = input, fresh
		fed = make(chan error, 1)
		go func() {
			// The child may exit without reading; the write then fails
			// once Wait closes the pipe.
			_, err := io.WriteString(stdin, input)
			if cerr := stdin.Close(); err == nil {
				err = cerr
			}
			fed <- err
		}()
	}

	waitErr := cmd.Wait()
	if fed != nil {
		if err := <-fed; err != nil {
			logging.Debug().Err(err).Str("command", display).Msg("child did not read all of its input")
		}
	}
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// The child exited cleanly but left something holding its output open.
		logging.Debug().Str("command", display).Msg("stopped draining output held open after exit")
		waitErr = nil
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, fmt.Errorf("waiting for %s: %w", display, waitErr)
		}
		res.ExitCode = exitCode(exitErr)
	}
	logging.Debug().Str("command", display).Int("exitCode", res.ExitCode).
		Dur("elapsed", res.Duration).Msg("command finished")

	r.Out.Stdout(res.Stdout)
	r.Out.Stderr(res.Stderr)
	return res, nil
}

// input returns the cached text, echoing it, or prompts and reads it.
func (r *Runner) input(ctx context.Context, cached *string) (text string, fresh bool, err error) {
	if cached != nil {
		r.Out.CachedInput(*cached)
		return *cached, false, nil
	}
	r.Out.PromptInput()
	text, err = ReadAll(ctx, r.In)
	if err != nil {
		return "", false, fmt.Errorf("reading input: %w", err)
	}
	return text, true, nil
}

// exitCode maps a signal death to 128+signal the way shells do.
func exitCode(e *exec.ExitError) int {
	if code := e.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := e.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

// ReadAll reads r until end-of-stream. It returns ctx.Err() as soon as ctx
// is cancelled; the pending read is abandoned in that case.
func ReadAll(ctx context.Context, r io.Reader) (string, error) {
	type readResult struct {
		data []byte
		err  error
	}
	done := make(chan readResult, 1)
	go func() {
		data, err := io.ReadAll(r)
		done <- readResult{data: data, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return string(res.data), nil
	}
}
