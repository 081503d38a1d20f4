package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/cphelper/internal/cache"
	"github.com/dshills/cphelper/internal/command"
	"github.com/dshills/cphelper/internal/config"
	"github.com/dshills/cphelper/internal/diff"
	"github.com/dshills/cphelper/internal/output"
	"github.com/dshills/cphelper/internal/runner"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// terminal mimics a tty: each part is delivered and then followed by one
// end-of-stream, the way Ctrl+D behaves on an empty line.
type terminal struct {
	parts []string
}

func (t *terminal) Read(b []byte) (int, error) {
	if len(t.parts) == 0 {
		return 0, io.EOF
	}
	if t.parts[0] == "" {
		t.parts = t.parts[1:]
		return 0, io.EOF
	}
	n := copy(b, t.parts[0])
	t.parts[0] = t.parts[0][n:]
	return n, nil
}

type noInput struct{ t *testing.T }

func (n noInput) Read([]byte) (int, error) {
	n.t.Error("unexpected read from the terminal")
	return 0, io.EOF
}

type fixture struct {
	dir       string
	file      string
	cachePath string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	file := filepath.Join(dir, "sol.txt")
	if err := os.WriteFile(file, []byte("source\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return fixture{dir: dir, file: file, cachePath: filepath.Join(dir, "cache", "cache.json")}
}

func (f fixture) pipeline(in io.Reader) (*Pipeline, *bytes.Buffer) {
	var buf bytes.Buffer
	rep := output.New(&buf, output.Options{NoColor: true})
	return New(runner.New(in, rep), rep, f.cachePath, diff.Options{}), &buf
}

func (f fixture) entry(t *testing.T) (cache.Entry, bool) {
	t.Helper()
	s, err := cache.Open(f.cachePath)
	if err != nil {
		t.Fatalf("cache.Open() error: %v", err)
	}
	return s.Lookup(f.file)
}

func lang(cmds ...string) config.Language {
	l := config.Language{Name: "test", Extensions: []string{"txt"}}
	for _, c := range cmds {
		l.Commands = append(l.Commands, command.MustParse(c))
	}
	return l
}

func strPtr(s string) *string { return &s }

func TestExecuteStopsOnFailingStep(t *testing.T) {
	f := newFixture(t)
	p, out := f.pipeline(noInput{t})

	got, err := p.Execute(context.Background(), lang("sh -c 'echo compile error >&2; exit 3'", "cat"), f.file, Options{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if diff := cmp.Diff(Outcome{ExitCode: 3, StepsRun: 1}, got); diff != "" {
		t.Errorf("Outcome mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out.String(), "compile error") {
		t.Errorf("stderr not shown:\n%s", out.String())
	}
	if strings.Contains(out.String(), "Enter the input") {
		t.Errorf("prompted after a failed step:\n%s", out.String())
	}
	if _, err := os.Stat(f.cachePath); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
	if _, ok := f.entry(t); ok {
		t.Error("entry saved although the last step never ran")
	}
}

func TestExecuteRunSavesFreshInput(t *testing.T) {
	f := newFixture(t)
	p, out := f.pipeline(&terminal{parts: []string{"hello\n"}})

	got, err := p.Execute(context.Background(), lang("cat"), f.file, Options{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if diff := cmp.Diff(Outcome{StepsRun: 1}, got); diff != "" {
		t.Errorf("Outcome mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out.String(), "Output obtained:\nhello\n") {
		t.Errorf("output not shown:\n%s", out.String())
	}
	e, ok := f.entry(t)
	if !ok {
		t.Fatal("entry not saved")
	}
	if e.Input != "hello\n" || e.HasExpected() {
		t.Errorf("entry = %+v", e)
	}
}

func TestExecuteReplaysCachedInput(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(&terminal{parts: []string{"first\n"}})
	if _, err := p.Execute(context.Background(), lang("cat"), f.file, Options{}); err != nil {
		t.Fatal(err)
	}
	before, _ := f.entry(t)

	p, out := f.pipeline(noInput{t})
	if _, err := p.Execute(context.Background(), lang("cat"), f.file, Options{}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out.String(), "Using cached input:\nfirst\n") {
		t.Errorf("cached input not echoed:\n%s", out.String())
	}
	after, _ := f.entry(t)
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("replayed run rewrote the entry")
	}
}

func TestExecuteMultiStepPlaceholders(t *testing.T) {
	f := newFixture(t)
	p, out := f.pipeline(&terminal{parts: []string{"ignored\n"}})

	l := lang("cp ${filename} ${filenameWithoutExt}.out", "cat ${filenameWithoutExt}.out")
	got, err := p.Execute(context.Background(), l, f.file, Options{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got.StepsRun != 2 || got.ExitCode != 0 {
		t.Errorf("Outcome = %+v", got)
	}
	if !strings.Contains(out.String(), "Output obtained:\nsource\n") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestExecuteDiff(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		matched  bool
		report   string
	}{
		{"match", "1\n2\n", "1\n2\n", true, "No Mismatch found!"},
		{"match without final newline", "25\n", "25", true, "No Mismatch found!"},
		{"mismatch", "1\n2\n", "1\n3\n", false, "Mismatch found! (+1 -1 lines)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p, out := f.pipeline(&terminal{parts: []string{tt.input, "", tt.expected}})

			got, err := p.Execute(context.Background(), lang("cat"), f.file, Options{Diff: true})
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			if !got.Diffed || got.Matched != tt.matched {
				t.Errorf("Outcome = %+v, want matched=%v", got, tt.matched)
			}
			if !strings.Contains(out.String(), tt.report) {
				t.Errorf("output missing %q:\n%s", tt.report, out.String())
			}
			e, ok := f.entry(t)
			if !ok {
				t.Fatal("entry not saved")
			}
			if diff := cmp.Diff(strPtr(tt.expected), e.Expected); diff != "" {
				t.Errorf("Expected mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteDiffReplaysEverything(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(&terminal{parts: []string{"5\n", "", "5\n"}})
	if _, err := p.Execute(context.Background(), lang("cat"), f.file, Options{Diff: true}); err != nil {
		t.Fatal(err)
	}

	p, out := f.pipeline(noInput{t})
	got, err := p.Execute(context.Background(), lang("cat"), f.file, Options{Diff: true})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !got.Matched {
		t.Errorf("Outcome = %+v", got)
	}
	for _, want := range []string{"Using cached input:", "Using cached expected output:", "No Mismatch found!"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestExecuteDiffPromptsForMissingExpected(t *testing.T) {
	f := newFixture(t)
	// A plain run leaves an entry with input only.
	p, _ := f.pipeline(&terminal{parts: []string{"7\n"}})
	if _, err := p.Execute(context.Background(), lang("cat"), f.file, Options{}); err != nil {
		t.Fatal(err)
	}

	p, out := f.pipeline(&terminal{parts: []string{"8\n"}})
	got, err := p.Execute(context.Background(), lang("cat"), f.file, Options{Diff: true})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if got.Matched {
		t.Error("expected a mismatch")
	}
	if !strings.Contains(out.String(), "Using cached input:") || !strings.Contains(out.String(), "Enter the expected output") {
		t.Errorf("unexpected prompts:\n%s", out.String())
	}
	e, _ := f.entry(t)
	if e.Input != "7\n" || e.Expected == nil || *e.Expected != "8\n" {
		t.Errorf("entry = %+v", e)
	}
}

func TestExecuteIgnoreCache(t *testing.T) {
	f := newFixture(t)
	store, err := cache.Open(f.cachePath)
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(f.file)
	other := filepath.Join(f.dir, "other.txt")
	if err := store.Save(abs, "old\n", strPtr("old\n")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(other, "keep\n", nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	p, out := f.pipeline(&terminal{parts: []string{"new\n", "", "new\n"}})
	got, err := p.Execute(context.Background(), lang("cat"), f.file, Options{Diff: true, IgnoreCache: true})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !got.Matched {
		t.Errorf("Outcome = %+v", got)
	}
	if strings.Contains(out.String(), "Using cached") {
		t.Errorf("cache used despite IgnoreCache:\n%s", out.String())
	}

	s, err := cache.Open(f.cachePath)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := s.Lookup(abs)
	if e.Input != "new\n" || *e.Expected != "new\n" {
		t.Errorf("entry = %+v", e)
	}
	if _, ok := s.Lookup(other); !ok {
		t.Error("unrelated entry dropped")
	}
}

func TestExecutePlainRunDropsStaleExpected(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(&terminal{parts: []string{"a\n", "", "a\n"}})
	if _, err := p.Execute(context.Background(), lang("cat"), f.file, Options{Diff: true}); err != nil {
		t.Fatal(err)
	}

	p, _ = f.pipeline(&terminal{parts: []string{"b\n"}})
	if _, err := p.Execute(context.Background(), lang("cat"), f.file, Options{IgnoreCache: true}); err != nil {
		t.Fatal(err)
	}
	e, _ := f.entry(t)
	if e.Input != "b\n" || e.HasExpected() {
		t.Errorf("entry = %+v", e)
	}
}

func TestExecuteDiffAfterFailingLastStep(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(&terminal{parts: []string{"x\n", "", "x\n"}})

	got, err := p.Execute(context.Background(), lang("sh -c 'cat; exit 1'"), f.file, Options{Diff: true})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if diff := cmp.Diff(Outcome{ExitCode: 1, StepsRun: 1, Diffed: true, Matched: true}, got); diff != "" {
		t.Errorf("Outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteLaunchErrorStillWritesCache(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(noInput{t})

	_, err := p.Execute(context.Background(), lang("${fileDir}/no-such-compiler ${filename}", "cat"), f.file, Options{})
	var le *runner.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *runner.LaunchError", err)
	}
	if _, err := os.Stat(f.cachePath); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
}

func TestExecuteCorruptCache(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(filepath.Dir(f.cachePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.cachePath, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, _ := f.pipeline(noInput{t})

	got, err := p.Execute(context.Background(), lang("cat"), f.file, Options{})
	if !errors.Is(err, cache.ErrCorrupt) {
		t.Fatalf("error = %v, want cache.ErrCorrupt", err)
	}
	if got.StepsRun != 0 {
		t.Errorf("StepsRun = %d, want 0", got.StepsRun)
	}
}

func TestExecuteCancelled(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(noInput{t})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Execute(ctx, lang("sleep 30", "cat"), f.file, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(f.cachePath); err != nil {
		t.Errorf("cache file not written after interrupt: %v", err)
	}
}

func TestExecuteInterruptKeepsTypedInput(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(&terminal{parts: []string{"typed\n"}})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := p.Execute(ctx, lang("sh -c 'cat >/dev/null; sleep 30'"), f.file, Options{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	e, ok := f.entry(t)
	if !ok || e.Input != "typed\n" {
		t.Errorf("entry = %+v, %v; want the typed input saved", e, ok)
	}
}

func TestExecuteLaunchErrorDoesNotPrompt(t *testing.T) {
	f := newFixture(t)
	p, out := f.pipeline(noInput{t})

	_, err := p.Execute(context.Background(), lang("${fileDir}/no-such-interpreter ${filename}"), f.file, Options{})
	var le *runner.LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("error = %v, want *runner.LaunchError", err)
	}
	if strings.Contains(out.String(), "Enter the input") {
		t.Errorf("prompted before the command started:\n%s", out.String())
	}
}

func TestExecuteNoCommands(t *testing.T) {
	f := newFixture(t)
	p, _ := f.pipeline(noInput{t})
	_, err := p.Execute(context.Background(), config.Language{Name: "empty"}, f.file, Options{})
	var ce *config.Error
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *config.Error", err)
	}
}
