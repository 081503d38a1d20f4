package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/cphelper/internal/command"
	"github.com/dshills/cphelper/internal/logging"
	"github.com/tidwall/jsonc"
)

// ErrNotFound is returned when none of the candidate config files exist.
var ErrNotFound = errors.New("no config file found")

// Error describes a problem with the contents of the config file.
type Error struct {
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Path == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Language is a named pipeline of commands for a set of file extensions.
type Language struct {
	Name       string
	Extensions []string
	Commands   []command.Template
}

// Config is the parsed language configuration.
type Config struct {
	// Path is the file the config was read from.
	Path      string
	Languages []Language
	byExt     map[string]int
}

// rawLanguage is the on-disk shape of a language entry.
type rawLanguage struct {
	Ext      []string `json:"ext"`
	Commands []string `json:"commands"`
}

// Parse decodes a config document. JSON comments and trailing commas are
// allowed. Languages are ordered by name.
func Parse(data []byte) (*Config, error) {
	var raw map[string]rawLanguage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, &Error{Msg: "invalid JSON", Err: err}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	cfg := &Config{byExt: make(map[string]int)}
	for _, name := range names {
		rl := raw[name]
		if len(rl.Commands) == 0 {
			return nil, &Error{Msg: fmt.Sprintf("language %q has no commands", name)}
		}
		lang := Language{Name: name}
		for _, c := range rl.Commands {
			tmpl, err := command.Parse(c)
			if err != nil {
				return nil, &Error{Msg: fmt.Sprintf("language %q", name), Err: err}
			}
			lang.Commands = append(lang.Commands, tmpl)
		}
		for _, ext := range rl.Ext {
			ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
			if ext == "" {
				return nil, &Error{Msg: fmt.Sprintf("language %q has an empty extension", name)}
			}
			if owner, dup := cfg.byExt[ext]; dup {
				return nil, &Error{Msg: fmt.Sprintf("extension %q assigned more than once (%s, %s)",
					ext, cfg.Languages[owner].Name, name)}
			}
			cfg.byExt[ext] = len(cfg.Languages)
			lang.Extensions = append(lang.Extensions, ext)
		}
		cfg.Languages = append(cfg.Languages, lang)
	}
	return cfg, nil
}

// ForExtension returns the language that owns ext (without a leading dot).
func (c *Config) ForExtension(ext string) (Language, bool) {
	i, ok := c.byExt[strings.TrimPrefix(ext, ".")]
	if !ok {
		return Language{}, false
	}
	return c.Languages[i], true
}

// ForFile returns the language for a source file, keyed by its extension.
func (c *Config) ForFile(path string) (Language, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return Language{}, &Error{Path: c.Path, Msg: fmt.Sprintf("cannot pick a language for %s: file has no extension", filepath.Base(path))}
	}
	lang, ok := c.ForExtension(ext)
	if !ok {
		return Language{}, &Error{Path: c.Path, Msg: fmt.Sprintf("no language configured for extension %q", ext)}
	}
	return lang, nil
}

// Locations returns the candidate config files in lookup order.
func Locations() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}
	return []string{
		filepath.Join(home, ".cphelper.json"),
		filepath.Join(home, ".config", "cphelper.json"),
		filepath.Join(home, ".config", "cphelper", "config.json"),
	}, nil
}

// Find returns the config file to use: $CPR_CONFIG when set, otherwise the
// first existing candidate from Locations.
func Find() (string, error) {
	if p := os.Getenv("CPR_CONFIG"); p != "" {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: CPR_CONFIG=%s does not exist", ErrNotFound, p)
			}
			return "", fmt.Errorf("checking config file: %w", err)
		}
		return p, nil
	}
	locations, err := Locations()
	if err != nil {
		return "", err
	}
	for _, p := range locations {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNotFound
}

// LoadFile reads and parses the config file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	cfg.Path = path
	logging.Debug().Str("path", path).Int("languages", len(cfg.Languages)).Msg("config loaded")
	return cfg, nil
}

// Load discovers and parses the config file.
func Load() (*Config, error) {
	path, err := Find()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// DefaultPath is where `cpr config init` writes a new config: the last
// lookup location, which keeps the home directory uncluttered.
func DefaultPath() (string, error) {
	locations, err := Locations()
	if err != nil {
		return "", err
	}
	return locations[len(locations)-1], nil
}

// Starter is the config written by `cpr config init`.
const Starter = `{
  // Each language maps file extensions to the commands run in order.
  // Placeholders: ${filename}, ${filenameWithoutExt}, ${fileDir}.
  "cpp": {
    "ext": ["cpp", "cc", "cxx"],
    "commands": [
      "g++ -std=c++17 -O2 -Wall ${filename} -o ${filenameWithoutExt}",
      "${filenameWithoutExt}"
    ]
  },
  "c": {
    "ext": ["c"],
    "commands": [
      "gcc -O2 -Wall ${filename} -o ${filenameWithoutExt}",
      "${filenameWithoutExt}"
    ]
  },
  "go": {
    "ext": ["go"],
    "commands": ["go run ${filename}"]
  },
  "python": {
    "ext": ["py"],
    "commands": ["python3 ${filename}"]
  }
}
`

// WriteStarter writes the starter config to path, creating parent
// directories. It refuses to overwrite an existing file.
func WriteStarter(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	if _, err := f.WriteString(Starter); err != nil {
		f.Close()
		return fmt.Errorf("writing config file: %w", err)
	}
	return f.Close()
}
