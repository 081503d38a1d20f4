// Package diff compares a program's output with the expected output.
//
// Comparison is purely textual. The only normalization is line endings:
// CRLF becomes LF and a missing newline on the last line is ignored, so
// "25" and "25\n" match while "25 " and "25" do not.
package diff

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Format selects how a mismatch is rendered.
type Format string

const (
	// FormatContext renders a context diff with "***"/"---" hunks.
	FormatContext Format = "context"
	// FormatUnified renders a unified diff with "@@" hunks.
	FormatUnified Format = "unified"
)

// ParseFormat validates a format name. The empty string selects FormatContext.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatContext:
		return FormatContext, nil
	case FormatUnified:
		return FormatUnified, nil
	default:
		return "", fmt.Errorf("unknown diff format %q (want context or unified)", s)
	}
}

// Options controls report rendering.
type Options struct {
	Format Format
	// Context is the number of unchanged lines around each hunk. Zero means 3.
	Context int
}

// Result is the outcome of a comparison.
type Result struct {
	Matched bool
	// Report is the rendered diff, empty when Matched.
	Report string
	// Added and Removed count expected-only and obtained-only lines.
	Added   int
	Removed int
}

// Compare diffs obtained against expected.
func Compare(obtained, expected string, opts Options) (Result, error) {
	a := SplitLines(obtained)
	b := SplitLines(expected)
	if slices.Equal(a, b) {
		return Result{Matched: true}, nil
	}

	context := opts.Context
	if context <= 0 {
		context = 3
	}
	var (
		report string
		err    error
	)
	switch opts.Format {
	case FormatUnified:
		report, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        a,
			B:        b,
			FromFile: "obtained",
			ToFile:   "expected",
			Context:  context,
		})
	default:
		report, err = difflib.GetContextDiffString(difflib.ContextDiff{
			A:        a,
			B:        b,
			FromFile: "obtained",
			ToFile:   "expected",
			Context:  context,
		})
	}
	if err != nil {
		return Result{}, fmt.Errorf("rendering diff: %w", err)
	}

	added, removed := countChanges(strings.Join(a, ""), strings.Join(b, ""))
	return Result{
		Matched: false,
		Report:  report,
		Added:   added,
		Removed: removed,
	}, nil
}

// SplitLines splits text into lines that each end in exactly one "\n".
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] += "\n"
	}
	return lines
}

func countChanges(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += strings.Count(d.Text, "\n")
		case diffmatchpatch.DiffDelete:
			removed += strings.Count(d.Text, "\n")
		}
	}
	return added, removed
}
