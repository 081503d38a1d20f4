package output

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/fatih/color"
)

// Options configures a Reporter.
type Options struct {
	// NoColor forces plain output even on a terminal.
	NoColor bool
}

// Reporter writes user-facing messages. It remembers the first write error.
type Reporter struct {
	ew     *errWriter
	prompt *color.Color
	good   *color.Color
	bad    *color.Color
	muted  *color.Color
}

// New creates a Reporter writing to w.
func New(w io.Writer, opts Options) *Reporter {
	r := &Reporter{
		ew:     &errWriter{w: w},
		prompt: color.New(color.FgYellow),
		good:   color.New(color.FgGreen),
		bad:    color.New(color.FgRed),
		muted:  color.New(color.FgHiBlack),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{r.prompt, r.good, r.bad, r.muted} {
			c.DisableColor()
		}
	}
	return r
}

// Err returns the first error encountered while writing.
func (r *Reporter) Err() error {
	return r.ew.err
}

// KeyCombo is the key sequence that ends terminal input on this platform.
func KeyCombo() string {
	if runtime.GOOS == "windows" {
		return "Ctrl + Z"
	}
	return "Ctrl + D"
}

// PromptInput asks the user to type the program input.
func (r *Reporter) PromptInput() {
	r.ew.println(r.prompt.Sprintf("Enter the input (then hit %s):", KeyCombo()))
}

// PromptExpected asks the user to type the expected output.
func (r *Reporter) PromptExpected() {
	r.ew.println(r.prompt.Sprintf("\nEnter the expected output (then hit %s):", KeyCombo()))
}

// CachedInput echoes input replayed from the cache.
func (r *Reporter) CachedInput(text string) {
	r.ew.println(r.prompt.Sprint("Using cached input:"))
	r.ew.print(withNewline(text))
}

// CachedExpected echoes an expected output replayed from the cache.
func (r *Reporter) CachedExpected(text string) {
	r.ew.println(r.prompt.Sprint("\nUsing cached expected output:"))
	r.ew.print(withNewline(text))
}

// Stdout shows what the program printed on stdout.
func (r *Reporter) Stdout(text string) {
	if text == "" {
		return
	}
	r.ew.println(r.good.Sprint("\nOutput obtained:"))
	r.ew.print(text)
}

// Stderr shows what the program printed on stderr.
func (r *Reporter) Stderr(text string) {
	if text == "" {
		return
	}
	r.ew.println(r.bad.Sprint("\nError obtained:"))
	r.ew.println(text)
}

// Match reports that the output equals the expectation.
func (r *Reporter) Match() {
	r.ew.println(r.good.Sprint("\nNo Mismatch found!"))
}

// Mismatch reports a difference along with the rendered diff.
func (r *Reporter) Mismatch(report string, added, removed int) {
	r.ew.println(r.bad.Sprintf("\nMismatch found! (+%d -%d lines)", added, removed))
	r.ew.print(withNewline(report))
}

// Notice prints a low-key status line.
func (r *Reporter) Notice(format string, args ...interface{}) {
	r.ew.println(r.muted.Sprintf(format, args...))
}

// Error prints a failure message.
func (r *Reporter) Error(format string, args ...interface{}) {
	r.ew.println(r.bad.Sprintf(format, args...))
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) print(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
