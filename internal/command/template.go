package command

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Placeholder names understood inside a command template as ${name}.
const (
	Filename           = "filename"
	FilenameWithoutExt = "filenameWithoutExt"
	FileDir            = "fileDir"
)

var placeholderRe = regexp.MustCompile(`\$\{(\w+)\}`)

// ErrEmptyCommand is returned by Split when a resolved command has no words.
var ErrEmptyCommand = errors.New("empty command")

// UnknownPlaceholderError reports a ${token} outside the placeholder vocabulary.
type UnknownPlaceholderError struct {
	Token string
}

func (e *UnknownPlaceholderError) Error() string {
	return fmt.Sprintf("invalid variable: ${%s}", e.Token)
}

// Placeholders returns the placeholder vocabulary in documentation order.
func Placeholders() []string {
	return []string{Filename, FilenameWithoutExt, FileDir}
}

// Template is a validated command template. The zero value resolves to "".
type Template struct {
	raw string
}

// Parse validates s and returns it as a Template.
func Parse(s string) (Template, error) {
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if _, ok := replacement(m[1], ""); !ok {
			return Template{}, &UnknownPlaceholderError{Token: m[1]}
		}
	}
	return Template{raw: s}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// built-in templates.
func MustParse(s string) Template {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template text as written.
func (t Template) String() string {
	return t.raw
}

// Resolve substitutes every placeholder in t against path.
func (t Template) Resolve(path string) string {
	// Parse guarantees every token is known.
	out, _ := Resolve(t.raw, path)
	return out
}

// Resolve substitutes the placeholders of template against the absolute
// file path. An unknown placeholder fails with *UnknownPlaceholderError.
func Resolve(template, path string) (string, error) {
	var unknown string
	out := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		token := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := replacement(token, path)
		if !ok {
			if unknown == "" {
				unknown = token
			}
			return m
		}
		return v
	})
	if unknown != "" {
		return "", &UnknownPlaceholderError{Token: unknown}
	}
	return out, nil
}

func replacement(token, path string) (string, bool) {
	switch token {
	case Filename:
		return path, true
	case FilenameWithoutExt:
		return filepath.Join(filepath.Dir(path), stem(filepath.Base(path))), true
	case FileDir:
		return filepath.Dir(path), true
	default:
		return "", false
	}
}

// stem strips the final extension. Dotfiles such as ".bashrc" keep their name.
func stem(base string) string {
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// Split tokenizes a resolved command line into an argument list using POSIX
// shell quoting rules. $VAR references are expanded from the environment.
func Split(resolved string) ([]string, error) {
	args, err := shell.Fields(resolved, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", resolved, err)
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}
