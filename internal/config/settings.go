package config

import (
	"os"
	"strconv"

	"github.com/dshills/cphelper/internal/cache"
)

// Settings are the runtime knobs that are not part of the language config.
type Settings struct {
	CacheFile  string
	LogLevel   string
	DiffFormat string
	NoColor    bool
}

// DefaultSettings returns Settings with all defaults applied.
func DefaultSettings() (Settings, error) {
	cacheFile, err := cache.DefaultPath()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		CacheFile:  cacheFile,
		LogLevel:   "warn",
		DiffFormat: "context",
	}, nil
}

// LoadSettings builds the effective settings by merging: defaults <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func LoadSettings(overrides map[string]string) (Settings, error) {
	s, err := DefaultSettings()
	if err != nil {
		return Settings{}, err
	}
	mergeEnv(&s)
	mergeOverrides(&s, overrides)
	return s, nil
}

func mergeEnv(s *Settings) {
	if v := os.Getenv("CPR_CACHE_FILE"); v != "" {
		s.CacheFile = v
	}
	if v := os.Getenv("CPR_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv("CPR_DIFF_FORMAT"); v != "" {
		s.DiffFormat = v
	}
	// https://no-color.org: any non-empty value disables color.
	if v := os.Getenv("NO_COLOR"); v != "" {
		s.NoColor = true
	}
}

func mergeOverrides(s *Settings, overrides map[string]string) {
	if overrides == nil {
		return
	}
	if v, ok := overrides["cacheFile"]; ok && v != "" {
		s.CacheFile = v
	}
	if v, ok := overrides["logLevel"]; ok && v != "" {
		s.LogLevel = v
	}
	if v, ok := overrides["diffFormat"]; ok && v != "" {
		s.DiffFormat = v
	}
	if v, ok := overrides["noColor"]; ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.NoColor = b
		}
	}
}
